package s3stream

import (
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/testutil"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

func TestClientOptions(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := streamtypes.ClientConfig{}
	opts := []streamtypes.Option{
		WithRegion("eu-west-1"),
		WithEndpoint("http://localhost:9000"),
		WithMaxRetries(5),
		WithTimeout(30 * time.Second),
		WithForcePathStyle(true),
		WithClientPrefetch(4),
		WithLogger(logger),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.ForcePathStyle)
	assert.Equal(t, 4, cfg.Prefetch)
	assert.Equal(t, logger, cfg.Logger)
}

func TestClientPrefetchIgnoresNonPositive(t *testing.T) {
	cfg := streamtypes.ClientConfig{Prefetch: DefaultPrefetch}

	WithClientPrefetch(0)(&cfg)
	assert.Equal(t, DefaultPrefetch, cfg.Prefetch)

	WithClientPrefetch(-3)(&cfg)
	assert.Equal(t, DefaultPrefetch, cfg.Prefetch)
}

func TestNewWithCustomAWSConfig(t *testing.T) {
	client, err := New(
		WithAWSConfig(&aws.Config{Region: "us-east-1"}),
	)

	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "us-east-1", client.config.Region)
}

func TestNewRegionOptionOverridesConfig(t *testing.T) {
	client, err := New(
		WithAWSConfig(&aws.Config{Region: "us-east-1"}),
		WithRegion("eu-west-1"),
	)

	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", client.config.Region)
}

func TestNewFailsWithoutRegion(t *testing.T) {
	_, err := New(
		WithAWSConfig(&aws.Config{}),
	)

	require.Error(t, err)
	assert.True(t, s3errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "no region configured")
}

func TestNewWithClient(t *testing.T) {
	store := testutil.NewObjectStore()

	client := NewWithClient(store)

	require.NotNil(t, client)
	assert.Equal(t, DefaultPrefetch, client.clientCfg.Prefetch)
	assert.NotNil(t, client.logger)
}
