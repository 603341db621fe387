package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test SanitizeField - sensitive keys are masked
func TestSanitizeField_SensitiveKeys(t *testing.T) {
	cases := []struct {
		key   string
		value string
		want  string
	}{
		{"refresh_token", "Atzr|abcdefghijklmnop", "Atzr*************mnop"},
		{"access_token", "token-1234567890", "toke********7890"},
		{"client_secret", "supersecretvalue", "supe********alue"},
		{"password", "hunter2", "h*****2"},
		{"Authorization", "Bearer abc123def", "Bear********3def"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeField(tc.key, tc.value), "key %q", tc.key)
	}
}

// Test SanitizeField - non-sensitive keys pass through untouched
func TestSanitizeField_PlainKeys(t *testing.T) {
	assert.Equal(t, "tenant-1", SanitizeField("tenant_id", "tenant-1"))
	assert.Equal(t, "/orders/v0/orders", SanitizeField("path", "/orders/v0/orders"))
	assert.Equal(t, "", SanitizeField("refresh_token", ""))
}

// Test SanitizeField - short secrets are fully masked except the ends
func TestSanitizeField_ShortSecrets(t *testing.T) {
	assert.Equal(t, "**", SanitizeField("token", "ab"))
	assert.Equal(t, "a**d", SanitizeField("token", "abcd"))
}

// Test SanitizeField - emails keep only a prefix and the domain
func TestSanitizeField_Email(t *testing.T) {
	assert.Equal(t, "sel***@example.com", SanitizeField("email", "seller@example.com"))
	assert.Equal(t, "a*@example.com", SanitizeField("email", "ab@example.com"))
	assert.Equal(t, "**********", SanitizeField("email", "not-anmail"))
}
