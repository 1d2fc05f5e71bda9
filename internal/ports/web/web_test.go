package web

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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

func newTestChannels() *ports.Channels {
	return &ports.Channels{
		Bus:         bus.New(),
		Broadcaster: broadcaster.New(messages.NewPlayerState(60)),
	}
}

func TestSetVolumePushesCommand(t *testing.T) {
	ch := newTestChannels()
	server := httptest.NewServer(Router(ch, testLogger(), ""))
	defer server.Close()

	resp, err := http.Post(server.URL+"/volume", "text/plain", strings.NewReader("85"))
	if err != nil {
		t.Fatalf("POST /volume: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	cmd, ok := ch.Bus.TryNext()
	if !ok {
		t.Fatal("expected a command on the bus")
	}
	if cmd.Kind != messages.CommandSetVolume || cmd.Volume != 85 {
		t.Fatalf("got command = %+v, want SetVolume(85)", cmd)
	}
}

func TestPlayURLRejectsMissingURL(t *testing.T) {
	ch := newTestChannels()
	server := httptest.NewServer(Router(ch, testLogger(), ""))
	defer server.Close()

	resp, err := http.Post(server.URL+"/play_url", "text/plain", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST /play_url: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPlayURLPushesCommand(t *testing.T) {
	ch := newTestChannels()
	server := httptest.NewServer(Router(ch, testLogger(), ""))
	defer server.Close()

	resp, err := http.Post(server.URL+"/play_url", "text/plain", strings.NewReader("http://example.com/stream.mp3"))
	if err != nil {
		t.Fatalf("POST /play_url: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	cmd, ok := ch.Bus.TryNext()
	if !ok {
		t.Fatal("expected a command on the bus")
	}
	if cmd.Kind != messages.CommandPlayURL || cmd.URL != "http://example.com/stream.mp3" {
		t.Fatalf("got command = %+v, want PlayURL(http://example.com/stream.mp3)", cmd)
	}
}

func TestStateReturnsCurrentSnapshot(t *testing.T) {
	ch := newTestChannels()
	server := httptest.NewServer(Router(ch, testLogger(), ""))
	defer server.Close()

	resp, err := http.Get(server.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer resp.Body.Close()

	var state messages.PlayerState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Volume != 60 {
		t.Fatalf("state.Volume = %d, want 60", state.Volume)
	}
}

func TestStateChangesStreamsInitialSnapshot(t *testing.T) {
	ch := newTestChannels()
	server := httptest.NewServer(Router(ch, testLogger(), ""))
	defer server.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, server.URL+"/state_changes", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET /state_changes: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read SSE line: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("line = %q, want data: prefix", line)
	}

	var diff messages.PlayerStateDiff
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &diff); err != nil {
		t.Fatalf("unmarshal diff: %v", err)
	}
	if diff.Volume == nil || *diff.Volume != 60 {
		t.Fatalf("diff.Volume = %v, want 60", diff.Volume)
	}
}
