package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sellersync/internal/biz"
	"sellersync/internal/conf"
	"sellersync/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-kratos/kratos/v2/log"
)

// NewNotifier selects the alert sink from configuration: SNS when a topic ARN
// is set, otherwise webhook when a URL is set, otherwise a logging no-op.
func NewNotifier(nc *conf.Notify, logger log.Logger) (biz.Notifier, error) {
	switch {
	case nc.SNSTopicARN != "":
		return newSNSNotifier(nc, logger)
	case nc.WebhookURL != "":
		return newWebhookNotifier(nc, logger), nil
	default:
		return &logNotifier{logger: log.NewHelper(logger)}, nil
	}
}

// webhookNotifier POSTs alert payloads as JSON to a configured endpoint.
type webhookNotifier struct {
	url    string
	client *http.Client
	logger *log.Helper
}

func newWebhookNotifier(nc *conf.Notify, logger log.Logger) *webhookNotifier {
	return &webhookNotifier{
		url:    nc.WebhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log.NewHelper(logger),
	}
}

// NotifyAuthFailure posts an auth-failure alert.
func (n *webhookNotifier) NotifyAuthFailure(ctx context.Context, ev *model.AuthFailureEvent) error {
	return n.post(ctx, "auth_failure", ev)
}

// NotifyLowStock posts a low-stock alert.
func (n *webhookNotifier) NotifyLowStock(ctx context.Context, ev *model.LowStockEvent) error {
	return n.post(ctx, "low_stock", ev)
}

func (n *webhookNotifier) post(ctx context.Context, kind string, payload interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"type":    kind,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s alert: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// snsPublisher is the subset of the SNS client the notifier uses.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsNotifier publishes alert payloads to an AWS SNS topic.
type snsNotifier struct {
	client   snsPublisher
	topicARN string
	logger   *log.Helper
}

func newSNSNotifier(nc *conf.Notify, logger log.Logger) (*snsNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(nc.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &snsNotifier{
		client:   sns.NewFromConfig(cfg),
		topicARN: nc.SNSTopicARN,
		logger:   log.NewHelper(logger),
	}, nil
}

// NotifyAuthFailure publishes an auth-failure alert.
func (n *snsNotifier) NotifyAuthFailure(ctx context.Context, ev *model.AuthFailureEvent) error {
	subject := fmt.Sprintf("Tenant %s requires re-authorization", ev.TenantID)
	return n.publish(ctx, subject, ev)
}

// NotifyLowStock publishes a low-stock alert.
func (n *snsNotifier) NotifyLowStock(ctx context.Context, ev *model.LowStockEvent) error {
	subject := fmt.Sprintf("Low stock: %s / %s", ev.TenantID, ev.SKU)
	return n.publish(ctx, subject, ev)
}

func (n *snsNotifier) publish(ctx context.Context, subject string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SNS alert: %w", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("SNS publish failed: %w", err)
	}
	return nil
}

// logNotifier is the fallback sink when no alert channel is configured.
type logNotifier struct {
	logger *log.Helper
}

// NotifyAuthFailure logs the alert.
func (n *logNotifier) NotifyAuthFailure(_ context.Context, ev *model.AuthFailureEvent) error {
	n.logger.Errorw("tenant requires re-authorization",
		"tenant_id", ev.TenantID,
		"reason", ev.Reason)
	return nil
}

// NotifyLowStock logs the alert.
func (n *logNotifier) NotifyLowStock(_ context.Context, ev *model.LowStockEvent) error {
	n.logger.Warnw("low stock",
		"tenant_id", ev.TenantID,
		"sku", ev.SKU,
		"available", ev.Available,
		"threshold", ev.Threshold)
	return nil
}
