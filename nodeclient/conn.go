package nodeclient

import (
	"sync/atomic"

	"google.golang.org/grpc"

	"github.com/maxpoletaev/esclient/internal/multierror"
)

// Conn is a gRPC connection to a single cluster member. It is shared by all
// callers that talk to the same address.
type Conn struct {
	*grpc.ClientConn
	addr    string
	onClose []func() error
	closed  uint32
}

// NewConn wraps an established gRPC connection. A nil connection is allowed and
// produces a Conn that only tracks its own closed state.
func NewConn(addr string, cc *grpc.ClientConn) *Conn {
	c := &Conn{
		ClientConn: cc,
		addr:       addr,
	}

	if cc != nil {
		c.addOnCloseHook(cc.Close)
	}

	return c
}

func (c *Conn) addOnCloseHook(f func() error) {
	c.onClose = append(c.onClose, f)
}

// Addr returns the address the connection was dialed to.
func (c *Conn) Addr() string {
	return c.addr
}

// Close closes the underlying gRPC connection. The connection may still be in
// use by other goroutines, whose calls will fail. Closing twice is a no-op.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return nil // already closed
	}

	errs := multierror.New[int]()

	for idx, f := range c.onClose {
		if err := f(); err != nil {
			errs.Add(idx, err)
		}
	}

	return errs.Combined()
}

// IsClosed returns true if the connection was closed and must not be used.
func (c *Conn) IsClosed() bool {
	return atomic.LoadUint32(&c.closed) == 1
}
