package wsport

import (
	"bytes"
	"encoding/gob"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"rradio/internal/broadcaster"
	"rradio/internal/bus"
	"rradio/internal/messages"
	"rradio/internal/ports"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestHandlerRoundTrip(t *testing.T) {
	b := bus.New()
	bc := broadcaster.New(messages.NewPlayerState(35))
	ch := &ports.Channels{Bus: b, Broadcaster: bc}

	server := httptest.NewServer(Handler(ch, testLogger()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	var diff messages.PlayerStateDiff
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&diff); err != nil {
		t.Fatalf("decode initial snapshot: %v", err)
	}
	if diff.Volume == nil || *diff.Volume != 35 {
		t.Fatalf("initial diff.Volume = %v, want 35", diff.Volume)
	}

	var cmdBuf bytes.Buffer
	if err := gob.NewEncoder(&cmdBuf).Encode(messages.SetVolume(90)); err != nil {
		t.Fatalf("encode command: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, cmdBuf.Bytes()); err != nil {
		t.Fatalf("write command: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for forwarded command")
		default:
		}
		if cmd, ok := b.TryNext(); ok {
			if cmd.Kind != messages.CommandSetVolume || cmd.Volume != 90 {
				t.Fatalf("got command = %+v, want SetVolume(90)", cmd)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
