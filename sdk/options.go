package sdk

import (
	"context"
	"crypto/tls"
	"net"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// DialOption controls how node channels are constructed.
type DialOption interface {
	apply(*dialConfig)
}

type optionFunc func(*dialConfig)

func (f optionFunc) apply(cfg *dialConfig) {
	f(cfg)
}

type dialConfig struct {
	transport   credentials.TransportCredentials
	passthrough bool
	noTracing   bool
	limit       rate.Limit
	burst       int
	extra       []grpc.DialOption
}

// WithTransportCredentials overrides the credentials derived from the node URL.
func WithTransportCredentials(creds credentials.TransportCredentials) DialOption {
	return optionFunc(func(cfg *dialConfig) {
		cfg.transport = creds
	})
}

// WithTLSConfig uses the provided TLS configuration, raising the minimum
// version to TLS 1.2 when lower.
func WithTLSConfig(tlsCfg *tls.Config) DialOption {
	return optionFunc(func(cfg *dialConfig) {
		clone := defaultTLSConfig()
		if tlsCfg != nil {
			clone = tlsCfg.Clone()
			if clone.MinVersion < tls.VersionTLS12 {
				clone.MinVersion = tls.VersionTLS12
			}
		}
		cfg.transport = credentials.NewTLS(clone)
	})
}

// WithInsecure uses plaintext connections for every node.
func WithInsecure() DialOption {
	return optionFunc(func(cfg *dialConfig) {
		cfg.transport = insecure.NewCredentials()
	})
}

// WithContextDialer replaces the network dialer. Targets bypass name
// resolution so the dialer receives the node address as configured.
func WithContextDialer(dialer func(context.Context, string) (net.Conn, error)) DialOption {
	return optionFunc(func(cfg *dialConfig) {
		cfg.passthrough = true
		cfg.extra = append(cfg.extra, grpc.WithContextDialer(dialer))
	})
}

// WithRateLimit limits the requests per second sent on each channel. A zero
// limit disables limiting.
func WithRateLimit(perSecond float64, burst int) DialOption {
	return optionFunc(func(cfg *dialConfig) {
		cfg.limit = rate.Limit(perSecond)
		cfg.burst = max(burst, 1)
	})
}

// WithoutTracing disables the OpenTelemetry stats handler.
func WithoutTracing() DialOption {
	return optionFunc(func(cfg *dialConfig) {
		cfg.noTracing = true
	})
}

// WithDialOptions forwards arbitrary gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) DialOption {
	return optionFunc(func(cfg *dialConfig) {
		cfg.extra = append(cfg.extra, opts...)
	})
}

func defaultTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
