package nodeclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Dialer establishes a connection with a cluster member.
type Dialer func(ctx context.Context, addr string) (*Conn, error)

// DialOptions configure the gRPC dialer.
type DialOptions struct {
	// TLS enables transport security. When TLSConfig is nil, the system roots are used.
	TLS       bool
	TLSConfig *tls.Config

	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration

	// Extra options are appended as is, e.g. a custom context dialer.
	Extra []grpc.DialOption
}

// DefaultDialOptions returns the options used by the client unless overridden.
func DefaultDialOptions() DialOptions {
	return DialOptions{
		TLS:               true,
		KeepAliveInterval: 10 * time.Second,
		KeepAliveTimeout:  10 * time.Second,
	}
}

// NewGRPCDialer returns a dialer that opens gRPC connections. Dialing blocks until
// the connection is ready or the context is done.
func NewGRPCDialer(opts DialOptions) Dialer {
	creds := insecure.NewCredentials()
	if opts.TLS {
		tlsConf := opts.TLSConfig
		if tlsConf == nil {
			tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		creds = credentials.NewTLS(tlsConf)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithBlock(),
		grpc.WithTransportCredentials(creds),
	}

	if opts.KeepAliveInterval > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepAliveInterval,
			Timeout:             opts.KeepAliveTimeout,
			PermitWithoutStream: true,
		}))
	}

	dialOpts = append(dialOpts, opts.Extra...)

	return func(ctx context.Context, addr string) (*Conn, error) {
		cc, err := grpc.DialContext(ctx, addr, dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("grpc dial failed: %w", err)
		}

		return NewConn(addr, cc), nil
	}
}
