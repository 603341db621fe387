// Package signer computes SigV4 request signatures for the marketplace
// partner API. The canonical-request / string-to-sign / derived-key chain is
// delegated to the AWS SDK implementation; a single canonicalization bug here
// would silently invalidate every outbound call.
package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// emptyPayloadHash is the hex SHA-256 of an empty body.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// RequestSigner signs outbound HTTP requests with SigV4.
type RequestSigner struct {
	signer  *v4.Signer
	service string
	// now is injectable so signatures are reproducible in tests.
	now func() time.Time
}

// Option configures a RequestSigner.
type Option func(*RequestSigner)

// WithClock overrides the signing clock.
func WithClock(now func() time.Time) Option {
	return func(s *RequestSigner) {
		s.now = now
	}
}

// New creates a RequestSigner for the given signing service name
// (e.g. "execute-api").
func New(service string, opts ...Option) *RequestSigner {
	s := &RequestSigner{
		signer:  v4.NewSigner(),
		service: service,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign computes the SigV4 headers for req in place. body must be the exact
// payload bytes the request carries (nil for no body). The same request,
// timestamp, and credentials always produce the same signature.
func (s *RequestSigner) Sign(ctx context.Context, req *http.Request, body []byte, accessKey, secretKey, sessionToken, region string) error {
	payloadHash := emptyPayloadHash
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		payloadHash = hex.EncodeToString(sum[:])
	}
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	creds := aws.Credentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    sessionToken,
	}

	return s.signer.SignHTTP(ctx, creds, req, payloadHash, s.service, region, s.now().UTC())
}

// SignAt is Sign with an explicit signing time, bypassing the configured clock.
func (s *RequestSigner) SignAt(ctx context.Context, req *http.Request, body []byte, accessKey, secretKey, sessionToken, region string, at time.Time) error {
	payloadHash := emptyPayloadHash
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		payloadHash = hex.EncodeToString(sum[:])
	}
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	creds := aws.Credentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    sessionToken,
	}

	return s.signer.SignHTTP(ctx, creds, req, payloadHash, s.service, region, at.UTC())
}
