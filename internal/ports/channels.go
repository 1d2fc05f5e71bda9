// Package ports holds the shared plumbing every concrete Port (tcp, wsport,
// web) builds on: the bus/broadcaster handle bundle and the diff-compressed
// event stream.
package ports

import (
	"context"

	"rradio/internal/broadcaster"
	"rradio/internal/bus"
	"rradio/internal/messages"
)

// Channels bundles what every Port needs to talk to the Controller: a place
// to push commands and a place to read the latest state from.
type Channels struct {
	Bus         *bus.Bus
	Broadcaster *broadcaster.Broadcaster
}

// EventStream returns a channel that receives an initial full snapshot diff
// (an "everything has changed" diff) followed by an incremental diff each
// time the broadcaster wakes it with a state whose fields differ from the
// last one sent; a wake that changes no field sends nothing. The channel
// closes when ctx is done.
func (c *Channels) EventStream(ctx context.Context) <-chan messages.PlayerStateDiff {
	out := make(chan messages.PlayerStateDiff, 1)

	go func() {
		defer close(out)

		sub := c.Broadcaster.Subscribe()
		defer sub.Unsubscribe()

		last := sub.Latest()
		select {
		case out <- messages.FullDiff(last):
		case <-ctx.Done():
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Wake():
				latest := sub.Latest()
				diff := messages.Diff(last, latest)
				last = latest
				if diff.IsEmpty() {
					continue
				}
				select {
				case out <- diff:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
