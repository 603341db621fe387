package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sellersync/internal/biz"
	"sellersync/internal/conf"
	"sellersync/internal/model"
	"sellersync/pkg/crypto"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// TenantCredential is the persisted credential record. Refresh tokens and
// client secrets are stored AES-256-GCM encrypted.
type TenantCredential struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	TenantID      string `gorm:"column:tenant_id;size:64;uniqueIndex;not null"`
	MarketplaceID string `gorm:"column:marketplace_id;size:32;not null"`
	ClientID      string `gorm:"column:client_id;size:255;not null"`
	// ClientSecretEnc and RefreshTokenEnc hold base64 AES-GCM ciphertext.
	ClientSecretEnc string     `gorm:"column:client_secret_enc;size:1024;not null"`
	RefreshTokenEnc string     `gorm:"column:refresh_token_enc;size:2048;not null"`
	AccessToken     string     `gorm:"column:access_token;size:2048"`
	TokenExpiry     *time.Time `gorm:"column:token_expiry"`
	Active          bool       `gorm:"column:active;default:true;index"`
	UnhealthyReason string     `gorm:"column:unhealthy_reason;size:512"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName sets the table name.
func (TenantCredential) TableName() string {
	return "tenant_credentials"
}

// credentialRepo implements biz.CredentialRepo on GORM with field-level
// encryption.
type credentialRepo struct {
	db     *gorm.DB
	crypto *crypto.AESCrypto
	logger *log.Helper
}

// NewCredentialRepo creates the credential repository. The encryption key
// comes from conf.Auth and must be 32 bytes.
func NewCredentialRepo(db *gorm.DB, ac *conf.Auth, logger log.Logger) (biz.CredentialRepo, error) {
	aesCrypto, err := crypto.NewAESCrypto([]byte(ac.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential encryption: %w", err)
	}
	return &credentialRepo{
		db:     db,
		crypto: aesCrypto,
		logger: log.NewHelper(logger),
	}, nil
}

// ListActive returns decrypted credentials for every active tenant.
func (r *credentialRepo) ListActive(ctx context.Context) ([]*model.Credentials, error) {
	var records []TenantCredential
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list active credentials: %w", err)
	}

	creds := make([]*model.Credentials, 0, len(records))
	for i := range records {
		c, err := r.decrypt(&records[i])
		if err != nil {
			// A corrupt record must not take down the whole bootstrap.
			r.logger.Errorw("failed to decrypt credential record, skipping",
				"tenant_id", records[i].TenantID,
				"error", err)
			continue
		}
		creds = append(creds, c)
	}
	return creds, nil
}

// Get returns one tenant's decrypted credentials.
func (r *credentialRepo) Get(ctx context.Context, tenantID string) (*model.Credentials, error) {
	var record TenantCredential
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("credentials not found for tenant %s", tenantID)
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return r.decrypt(&record)
}

// UpdateAccessToken persists a refreshed access token and its expiry. The
// refresh token column is never touched here.
func (r *credentialRepo) UpdateAccessToken(ctx context.Context, tenantID, accessToken string, expiry time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&TenantCredential{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"token_expiry": expiry,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update access token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no credential record for tenant %s", tenantID)
	}
	return nil
}

// MarkUnhealthy deactivates a tenant whose refresh token was rejected.
func (r *credentialRepo) MarkUnhealthy(ctx context.Context, tenantID, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&TenantCredential{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"active":           false,
			"unhealthy_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark tenant unhealthy: %w", result.Error)
	}
	return nil
}

// decrypt maps a stored record to the domain credentials.
func (r *credentialRepo) decrypt(record *TenantCredential) (*model.Credentials, error) {
	clientSecret, err := r.crypto.Decrypt(record.ClientSecretEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client secret: %w", err)
	}
	refreshToken, err := r.crypto.Decrypt(record.RefreshTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return &model.Credentials{
		TenantID:      record.TenantID,
		MarketplaceID: record.MarketplaceID,
		ClientID:      record.ClientID,
		ClientSecret:  clientSecret,
		RefreshToken:  refreshToken,
		AccessToken:   record.AccessToken,
		TokenExpiry:   record.TokenExpiry,
	}, nil
}
