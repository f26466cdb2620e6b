package routing

import (
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"github.com/maxpoletaev/esclient/internal/grpcutil"
)

// Trailer keys the server uses to describe a failed call.
const (
	exceptionKey          = "exception"
	leaderEndpointHostKey = "leader-endpoint-host"
	leaderEndpointPortKey = "leader-endpoint-port"
)

var (
	ErrAccessDenied     = errors.New("access denied")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// NotLeaderError is returned when a call that requires the leader reached
// another node. Addr is the leader address reported by that node, if known.
type NotLeaderError struct {
	Addr string
	Err  error
}

func (e *NotLeaderError) Error() string {
	if e.Addr == "" {
		return "not leader"
	}

	return fmt.Sprintf("not leader, leader is at %s", e.Addr)
}

func (e *NotLeaderError) Unwrap() error {
	return e.Err
}

type errorConstructor func(err error, trailer metadata.MD) error

func wrapWith(kind error) errorConstructor {
	return func(err error, _ metadata.MD) error {
		return fmt.Errorf("%w: %w", kind, err)
	}
}

// exceptions maps the exception names reported in call trailers to typed errors.
var exceptions = map[string]errorConstructor{
	"not-leader": func(err error, trailer metadata.MD) error {
		host := grpcutil.TrailerValue(trailer, leaderEndpointHostKey)
		port := grpcutil.TrailerValue(trailer, leaderEndpointPortKey)

		notLeader := &NotLeaderError{Err: err}
		if host != "" && port != "" {
			notLeader.Addr = net.JoinHostPort(host, port)
		}

		return notLeader
	},
	"access-denied":     wrapWith(ErrAccessDenied),
	"not-authenticated": wrapWith(ErrNotAuthenticated),
}

// mapError converts a failed call into a typed error using the exception name in
// the trailer. Errors without a known exception are returned as is, except for
// deadlines, which are marked with ErrDeadlineExceeded.
func mapError(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}

	if ctor, ok := exceptions[grpcutil.TrailerValue(trailer, exceptionKey)]; ok {
		return ctor(err, trailer)
	}

	if grpcutil.ErrorCode(err) == codes.DeadlineExceeded {
		return fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
	}

	return err
}

// redirect returns the leader address carried by a not-leader error.
func redirect(err error) (string, bool) {
	var notLeader *NotLeaderError
	if errors.As(err, &notLeader) && notLeader.Addr != "" {
		return notLeader.Addr, true
	}

	return "", false
}
