package ports

import (
	"context"
	"testing"
	"time"

	"rradio/internal/broadcaster"
	"rradio/internal/bus"
	"rradio/internal/messages"
)

func TestInitialSnapshotIsFullDiff(t *testing.T) {
	initial := messages.NewPlayerState(70)
	ch := &Channels{Bus: bus.New(), Broadcaster: broadcaster.New(initial)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := ch.EventStream(ctx)

	select {
	case diff := <-events:
		want := messages.FullDiff(initial)
		if diff.Volume == nil || *diff.Volume != *want.Volume {
			t.Fatalf("diff.Volume = %v, want %v", diff.Volume, want.Volume)
		}
		if diff.Phase == nil {
			t.Fatal("expected initial diff to carry Phase")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}
}

func TestDiffOmitsUnchangedFields(t *testing.T) {
	initial := messages.NewPlayerState(70)
	bc := broadcaster.New(initial)
	ch := &Channels{Bus: bus.New(), Broadcaster: bc}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := ch.EventStream(ctx)
	<-events // drain the initial full snapshot

	next := initial
	next.Volume = 42
	next.Version++
	bc.Publish(next)

	select {
	case diff := <-events:
		if diff.Volume == nil || *diff.Volume != 42 {
			t.Fatalf("diff.Volume = %v, want 42", diff.Volume)
		}
		if diff.Phase != nil {
			t.Fatal("Phase did not change; diff should omit it")
		}
		if diff.Buffering != nil {
			t.Fatal("Buffering did not change; diff should omit it")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for incremental diff")
	}
}
