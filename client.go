// Package s3stream provides client initialization and configuration.
//
// The Client resolves its S3 endpoint and region once, before any fetch
// is issued; everything it holds afterwards is read-only and safe to
// share across concurrent streams.
package s3stream

import (
	"context"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/s3api"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

const (
	// DefaultChunkSize is the size of each ranged read request when no
	// chunk size option is given.
	DefaultChunkSize = 8 * 1024 * 1024 // 8MB

	// DefaultSubChunkSize bounds the buffers yielded to the consumer
	// while a single response body is drained.
	DefaultSubChunkSize = 64 * 1024 // 64KB

	// DefaultPrefetch is the number of ranged reads kept open ahead of
	// the one being drained.
	DefaultPrefetch = 1
)

// Client streams ranged reads from S3. It provides thread-safe access:
// a single Client may serve any number of concurrent streams, each with
// its own manifest and output sequence.
type Client struct {
	// s3Client is the underlying AWS SDK S3 client
	s3Client s3api.S3API

	// config holds the resolved AWS configuration
	config aws.Config

	// clientCfg holds the module-level options applied at construction
	clientCfg streamtypes.ClientConfig

	// logger receives debug output; discarded unless WithLogger is used
	logger logrus.FieldLogger
}

// New creates a new streaming client with the provided options.
// It loads AWS credentials using the default credential chain and
// applies the specified configuration options. A failure here is a
// configuration error: it is surfaced synchronously, before any fetch
// begins.
//
// Example:
//
//	client, err := s3stream.New(
//	    s3stream.WithRegion("eu-west-1"),
//	    s3stream.WithMaxRetries(3),
//	)
func New(opts ...streamtypes.Option) (*Client, error) {
	clientCfg := streamtypes.ClientConfig{
		MaxRetries: 3,
		Prefetch:   DefaultPrefetch,
	}

	for _, opt := range opts {
		opt(&clientCfg)
	}

	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, s3errors.NewError("client initialization", s3errors.ErrConfiguration).
				WithMessage(err.Error())
		}
	}

	// Apply region from options if specified, otherwise fall back to
	// the default chain's region.
	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		return nil, s3errors.NewError("client initialization", s3errors.ErrConfiguration).
			WithMessage("no region configured and none resolvable from the environment")
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)

	if clientCfg.Endpoint != "" {
		endpoint := clientCfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	if clientCfg.Timeout > 0 {
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return &Client{
		s3Client:  s3.NewFromConfig(cfg, s3Opts...),
		config:    cfg,
		clientCfg: clientCfg,
		logger:    resolveLogger(clientCfg.Logger),
	}, nil
}

// NewWithClient creates a new streaming client with a custom S3API
// implementation. This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API, opts ...streamtypes.Option) *Client {
	clientCfg := streamtypes.ClientConfig{
		Prefetch: DefaultPrefetch,
	}
	for _, opt := range opts {
		opt(&clientCfg)
	}

	return &Client{
		s3Client:  s3Client,
		config:    aws.Config{},
		clientCfg: clientCfg,
		logger:    resolveLogger(clientCfg.Logger),
	}
}

// resolveLogger returns the configured logger, or one that discards
// everything so the library stays silent unless the host opts in.
func resolveLogger(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger != nil {
		return logger
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	return silent
}
