package llm

import (
	"context"

	deeperrors "deepgraph/internal/errors"
	"deepgraph/internal/logging"
)

// retryClient wraps a Client with an explicit retry policy. Rate-limit,
// connection and server errors are retried with exponential backoff; other
// API errors abort the current turn only.
type retryClient struct {
	underlying Client
	config     deeperrors.RetryConfig
	logger     logging.Logger
}

// WrapWithRetry decorates client with the given retry policy.
func WrapWithRetry(client Client, config deeperrors.RetryConfig) Client {
	return &retryClient{
		underlying: client,
		config:     config,
		logger:     logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return deeperrors.RetryWithResult(ctx, c.config, c.logger, func(ctx context.Context) (*CompletionResponse, error) {
		return c.underlying.Complete(ctx, req)
	})
}

// StreamComplete is not retried: replaying a stream after a mid-stream fault
// would duplicate deltas already surfaced to the caller.
func (c *retryClient) StreamComplete(ctx context.Context, req CompletionRequest, callbacks StreamCallbacks) (*CompletionResponse, error) {
	return c.underlying.StreamComplete(ctx, req, callbacks)
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}
