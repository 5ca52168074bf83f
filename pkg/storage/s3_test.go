package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeKey(t *testing.T) {
	assert.Equal(t, "codes/f1/r1.png", CodeKey("f1", "r1"))
	assert.Equal(t, "codes/f1/r1.png", CodeKey("f1/", "r1"))
}

func TestPresignCodeDownload(t *testing.T) {
	s, err := NewS3(context.Background(), S3Config{
		Region:               "eu-west-1",
		AccessKeyID:          "AKIDEXAMPLE",
		SecretAccessKey:      "secret",
		CodesBucket:          "event-codes",
		Endpoint:             "http://localhost:9000",
		PresignExpireMinutes: 5,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, s.PresignExpire())

	raw, err := s.PresignCodeDownload(context.Background(), CodeKey("f1", "r1"))
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/event-codes/codes/f1/r1.png"), u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresignExpireDefault(t *testing.T) {
	assert.Equal(t, 15*time.Minute, (&S3{}).PresignExpire())
}
