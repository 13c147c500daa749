//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/dead-man-switch/internal/api/grpc/deadman"
	"github.com/oshokin/dead-man-switch/internal/config"
	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

// Client wraps the gRPC SwitchService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the switch.
	conn *grpc.ClientConn
	// api is the SwitchService client interface.
	api api.SwitchServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errSourceRequired is returned when a check-in has no source.
	errSourceRequired = errors.New("source must be provided")
)

// Dial establishes a gRPC connection to the switch.
// Note: this uses insecure transport credentials; the API listens on
// loopback by default, terminate TLS in a proxy when exposing it.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial switch: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewSwitchServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetStatus retrieves the current switch status.
func (c *Client) GetStatus(ctx context.Context) (domain.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return domain.Status{}, fmt.Errorf("get status: %w", err)
	}

	return api.StatusFromStruct(response)
}

// CheckIn records a check-in on behalf of source.
func (c *Client) CheckIn(ctx context.Context, source string) (domain.Status, error) {
	if source == "" {
		return domain.Status{}, errSourceRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.CheckIn(callCtx, wrapperspb.String(source))
	if err != nil {
		return domain.Status{}, fmt.Errorf("check in: %w", err)
	}

	return api.StatusFromStruct(response)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
