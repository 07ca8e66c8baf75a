package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	cfg "github.com/templui/thrive/internal/config"
)

func TestBaseURL(t *testing.T) {
	require.Equal(t, "https://avatars.s3.eu-west-1.amazonaws.com",
		baseURL(S3Config{Bucket: "avatars", Region: "eu-west-1"}))
	require.Equal(t, "http://localhost:9000/avatars",
		baseURL(S3Config{Bucket: "avatars", Endpoint: "http://localhost:9000/"}))
}

func TestNewDisabledWithoutBucket(t *testing.T) {
	s, err := New(context.Background(), &cfg.Config{})
	require.NoError(t, err)
	require.Nil(t, s)
}
