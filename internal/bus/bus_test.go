package bus

import (
	"sync"
	"testing"
	"time"

	"rradio/internal/messages"
)

func TestBusFIFOPerProducer(t *testing.T) {
	b := New()
	done := make(chan struct{})
	defer close(done)

	for i := 0; i < 5; i++ {
		b.Push(messages.SetVolume(i))
	}

	for i := 0; i < 5; i++ {
		cmd, ok := b.Next(done)
		if !ok {
			t.Fatalf("expected a command at index %d", i)
		}
		if cmd.Volume != i {
			t.Fatalf("command %d: got volume %d, want %d (FIFO violated)", i, cmd.Volume, i)
		}
	}
}

func TestBusBoundedUnderBurst(t *testing.T) {
	b := New()

	const producers = 8
	const perProducer = 125 // 1000 commands total, approximating a 1kHz burst

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Push(messages.VolumeUp())
			}
		}()
	}
	wg.Wait()

	if got, want := b.Len(), producers*perProducer; got != want {
		t.Fatalf("queue depth = %d, want %d", got, want)
	}

	done := make(chan struct{})
	defer close(done)
	count := 0
	for {
		if _, ok := b.TryNext(); !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Fatalf("drained %d commands, want %d", count, producers*perProducer)
	}
}

func TestBusNextUnblocksOnDone(t *testing.T) {
	b := New()
	done := make(chan struct{})

	result := make(chan bool, 1)
	go func() {
		_, ok := b.Next(done)
		result <- ok
	}()

	close(done)

	select {
	case ok := <-result:
		if ok {
			t.Fatalf("expected Next to report !ok after done closed")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock on done")
	}
}

func TestBusNeverErrorsAfterClose(t *testing.T) {
	b := New()
	b.Close()
	b.Push(messages.Stop()) // must not panic
	if b.Len() != 0 {
		t.Fatalf("expected closed bus to drop pushes, got len %d", b.Len())
	}
}
