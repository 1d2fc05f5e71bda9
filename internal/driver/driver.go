// Package driver wraps an injectable playback engine behind a small façade,
// so the Controller never depends on a concrete media library.
package driver

import (
	"context"
	"sync"

	"rradio/internal/messages"
)

// MediaEngine is the extension point a concrete playback backend implements.
// Load begins preparing uri for playback; the engine reports progress and
// completion asynchronously on the channel it returns.
type MediaEngine interface {
	Load(ctx context.Context, uri string) (<-chan messages.PipelineEvent, error)
	Play() error
	Pause() error
	Stop() error
	Seek(offset int) error
	SetVolume(percent int) error
}

// Driver is the façade the Controller talks to: Load/Play/Pause/Stop/Seek/
// SetVolume plus a single fan-in event channel, regardless of which
// MediaEngine is behind it.
type Driver struct {
	mu     sync.Mutex
	engine MediaEngine
	events chan messages.PipelineEvent
	cancel context.CancelFunc
}

// New wraps engine in a Driver. The caller owns engine's lifetime.
func New(engine MediaEngine) *Driver {
	return &Driver{
		engine: engine,
		events: make(chan messages.PipelineEvent, 32),
	}
}

// Events returns the channel the Controller selects on for PipelineEvents.
func (d *Driver) Events() <-chan messages.PipelineEvent {
	return d.events
}

// Load begins loading uri, cancelling any in-flight load first.
func (d *Driver) Load(ctx context.Context, uri string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	upstream, err := d.engine.Load(loadCtx, uri)
	if err != nil {
		cancel()
		return err
	}

	go d.pump(loadCtx, upstream)
	return nil
}

// pump relays the engine's events onto the Driver's fan-in channel until the
// engine closes upstream or the load context is cancelled by a subsequent
// Load call: a late result from a superseded load is discarded rather than
// relayed.
func (d *Driver) pump(ctx context.Context, upstream <-chan messages.PipelineEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-upstream:
			if !ok {
				return
			}
			select {
			case d.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (d *Driver) Play() error { return d.engine.Play() }

func (d *Driver) Pause() error { return d.engine.Pause() }

// Stop cancels any in-flight load and stops the engine.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	return d.engine.Stop()
}

func (d *Driver) Seek(offset int) error { return d.engine.Seek(offset) }

func (d *Driver) SetVolume(percent int) error { return d.engine.SetVolume(percent) }
