package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("THRIVE_TEST_BOOL", "true")
	t.Setenv("THRIVE_TEST_BAD_BOOL", "nope")
	t.Setenv("THRIVE_TEST_INT", "42")
	t.Setenv("THRIVE_TEST_FLOAT", "2.5")
	t.Setenv("THRIVE_TEST_DURATION", "90s")
	t.Setenv("THRIVE_TEST_LIST", " a, b ,,c ")

	require.True(t, envBool("THRIVE_TEST_BOOL", false))
	require.True(t, envBool("THRIVE_TEST_BAD_BOOL", true))
	require.Equal(t, 42, envInt("THRIVE_TEST_INT", 1))
	require.Equal(t, 7, envInt("THRIVE_TEST_MISSING", 7))
	require.Equal(t, 2.5, envFloat("THRIVE_TEST_FLOAT", 1))
	require.Equal(t, 90*time.Second, envDuration("THRIVE_TEST_DURATION", time.Minute))
	require.Equal(t, []string{"a", "b", "c"}, envList("THRIVE_TEST_LIST", nil))
	require.Equal(t, "fallback", envString("THRIVE_TEST_MISSING", "fallback"))
}

func TestSanitizedDropsSecrets(t *testing.T) {
	cfg := &Config{
		AppName:         "Thrive",
		JWTSecret:       "secret",
		StripeSecretKey: "sk_live",
		ResendAPIKey:    "re_123",
		S3SecretKey:     "s3",
		GoogleClientID:  "google-id",
	}

	safe := cfg.Sanitized()
	require.Equal(t, "Thrive", safe.AppName)
	require.Equal(t, "google-id", safe.GoogleClientID)
	require.Empty(t, safe.JWTSecret)
	require.Empty(t, safe.StripeSecretKey)
	require.Empty(t, safe.ResendAPIKey)
	require.Empty(t, safe.S3SecretKey)
}

func TestStorageEnabled(t *testing.T) {
	require.False(t, (&Config{S3Bucket: "b"}).StorageEnabled())
	require.True(t, (&Config{S3Bucket: "b", S3AccessKey: "k", S3SecretKey: "s"}).StorageEnabled())
}
