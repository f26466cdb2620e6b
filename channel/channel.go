// Package channel decides which cluster member a call goes to and hands out the
// cached connection to it.
package channel

import (
	"context"

	"github.com/maxpoletaev/esclient/nodeclient"
)

// Channel is the connection selected for a call. Callers report failed calls
// through it, so that the next selection can route elsewhere.
type Channel struct {
	Addr   string
	Conn   *nodeclient.Conn
	report func(error)
}

// ReportFailure tells the selector that a call over this channel failed because
// the member is unreachable or no longer suitable. Reports for a channel that has
// already been replaced are ignored.
func (c *Channel) ReportFailure(err error) {
	if c.report != nil {
		c.report(err)
	}
}

// Selector hands out channels to cluster members.
type Selector interface {
	// SelectChannel returns the channel to the member calls should go to.
	SelectChannel(ctx context.Context) (*Channel, error)
	// SelectChannelAt returns the channel to the given address, e.g. the leader
	// named by the server in a redirect.
	SelectChannelAt(ctx context.Context, addr string) (*Channel, error)
}

// ConnCache returns a connection to an address. It is satisfied by *nodeclient.Cache.
type ConnCache interface {
	GetOrCreate(ctx context.Context, addr string) (*nodeclient.Conn, error)
}
