package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MYSQL_DSN", "user:pass@tcp(127.0.0.1:3306)/sellersync?parseTime=true")
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
}

// Test NewBootstrap - defaults apply when only required fields are set
func TestNewBootstrap_Defaults(t *testing.T) {
	setRequiredEnv(t)

	bc, err := NewBootstrap("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", bc.Server.Http.Addr)
	assert.Equal(t, "mysql", bc.Data.Database.Driver)
	assert.Equal(t, "127.0.0.1:6379", bc.Data.Redis.Addr)
	assert.Equal(t, "https://api.amazon.com/auth/o2/token", bc.Marketplace.TokenEndpoint)
	assert.Equal(t, "execute-api", bc.Marketplace.Service)
	assert.Equal(t, "/sellers/v1/marketplaceParticipations", bc.Marketplace.HealthCheckPath)
	assert.Equal(t, "0 */30 * * * *", bc.Sync.CronSpec)
	assert.Equal(t, 2*time.Second, bc.Sync.InterTenantDelay)
	assert.EqualValues(t, 5, bc.Sync.LowStockThreshold)
	assert.Equal(t, "sellersync:sync_events", bc.Notify.EventChannel)
	assert.Equal(t, "info", bc.Log.Level)
}

// Test NewBootstrap - environment variables override defaults
func TestNewBootstrap_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SELLERSYNC_SERVER_HTTP_ADDR", ":9090")
	t.Setenv("SELLERSYNC_SYNC_INTER_TENANT_DELAY", "5s")
	t.Setenv("LWA_TOKEN_ENDPOINT", "https://token.test/o2/token")

	bc, err := NewBootstrap("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", bc.Server.Http.Addr)
	assert.Equal(t, 5*time.Second, bc.Sync.InterTenantDelay)
	assert.Equal(t, "https://token.test/o2/token", bc.Marketplace.TokenEndpoint)
}

// Test NewBootstrap - missing required fields are reported together
func TestNewBootstrap_MissingRequired(t *testing.T) {
	_, err := NewBootstrap("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.database.source")
	assert.Contains(t, err.Error(), "auth.encryption.key")
}

// Test NewBootstrap - a nonexistent config file is an error
func TestNewBootstrap_BadConfigPath(t *testing.T) {
	setRequiredEnv(t)

	_, err := NewBootstrap("/nonexistent/config.yaml")
	assert.Error(t, err)
}

// Test Validate - direct validation of a constructed config
func TestValidate(t *testing.T) {
	bc := &Bootstrap{
		Data:        &Data{Database: &Data_Database{Source: "dsn"}},
		Auth:        &Auth{EncryptionKey: "key"},
		Marketplace: &Marketplace{TokenEndpoint: "https://token.test"},
	}
	assert.NoError(t, Validate(bc))

	bc.Auth.EncryptionKey = ""
	err := Validate(bc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.encryption.key")
}
