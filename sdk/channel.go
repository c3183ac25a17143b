package sdk

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/smartcontractkit/chainlink-hedera/network"
)

const DefaultPort = "50211"

var _ network.Channel = &GrpcChannel{}

// TransportError is a failure to complete an rpc, as opposed to a precheck
// status returned by the node.
type TransportError struct {
	Target string
	Method string
	Code   codes.Code
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error calling %s on %s (%s): %v", e.Method, e.Target, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GrpcChannel is a network.Channel over one grpc.ClientConn.
type GrpcChannel struct {
	target  string
	conn    *grpc.ClientConn
	limiter *rate.Limiter
}

func (c *GrpcChannel) Invoke(ctx context.Context, method string, request []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Target: c.target, Method: method, Code: codes.ResourceExhausted, Err: err}
		}
	}

	var response []byte
	if err := c.conn.Invoke(ctx, method, request, &response, grpc.ForceCodec(rawCodec{})); err != nil {
		return nil, &TransportError{
			Target: c.target,
			Method: method,
			Code:   status.Code(err),
			Err:    pkgerrors.Wrap(err, "invoke failed"),
		}
	}
	return response, nil
}

func (c *GrpcChannel) Close() error {
	return c.conn.Close()
}

// NewDialer returns a network.Dialer creating a GrpcChannel per node.
// Connections are established lazily on the first rpc.
func NewDialer(opts ...DialOption) network.Dialer {
	return func(node network.Node) (network.Channel, error) {
		return Dial(node.URL, opts...)
	}
}

// Dial creates a channel to nodeURL. The URL host and port select the target,
// port 50211 when unset. Plaintext is used when the query has insecure=true,
// TLS otherwise, unless an option overrides the credentials.
func Dial(nodeURL *url.URL, opts ...DialOption) (*GrpcChannel, error) {
	if nodeURL == nil || nodeURL.Hostname() == "" {
		return nil, fmt.Errorf("node url has no host")
	}

	port := nodeURL.Port()
	if port == "" {
		port = DefaultPort
	}
	target := nodeURL.Hostname() + ":" + port

	var transport credentials.TransportCredentials
	if isInsecure(nodeURL) {
		transport = insecure.NewCredentials()
	} else {
		transport = credentials.NewTLS(defaultTLSConfig())
	}

	cfg := dialConfig{transport: transport}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&cfg)
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(cfg.transport)}
	if !cfg.noTracing {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	}
	dialOpts = append(dialOpts, cfg.extra...)

	dialTarget := target
	if cfg.passthrough {
		dialTarget = "passthrough:///" + target
	}
	conn, err := grpc.NewClient(dialTarget, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}

	ch := &GrpcChannel{target: target, conn: conn}
	if cfg.limit > 0 {
		ch.limiter = rate.NewLimiter(cfg.limit, cfg.burst)
	}
	return ch, nil
}

func isInsecure(u *url.URL) bool {
	values, ok := u.Query()["insecure"]
	if !ok || len(values) == 0 {
		return false
	}
	v := strings.ToLower(values[0])
	return v == "true" || v == "1"
}
