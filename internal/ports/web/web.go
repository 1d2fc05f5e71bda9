// Package web implements the HTTP Port: plain POST command endpoints (some
// with a bare-scalar body, some JSON, matching each endpoint's fixed wire
// format), a JSON state snapshot, and a server-sent-events stream of diffs
// for browser clients.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"rradio/internal/messages"
	"rradio/internal/ports"
	"rradio/internal/ports/wsport"
)

// Router builds the mux.Router serving the web command/state surface, plus
// static assets from staticDir when non-empty.
func Router(ch *ports.Channels, log *logrus.Logger, staticDir string) *mux.Router {
	h := &handlers{ch: ch, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/volume", h.setVolume).Methods(http.MethodPost)
	r.HandleFunc("/play_url", h.playURL).Methods(http.MethodPost)
	r.HandleFunc("/play_pause", h.playPause).Methods(http.MethodPost)
	r.HandleFunc("/play_station", h.playStation).Methods(http.MethodPost)
	r.HandleFunc("/stop", h.stop).Methods(http.MethodPost)
	r.HandleFunc("/state", h.state).Methods(http.MethodGet)
	r.HandleFunc("/state_changes", h.stateChanges).Methods(http.MethodGet)
	r.Handle("/api", wsport.Handler(ch, log))

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}

	return r
}

type handlers struct {
	ch  *ports.Channels
	log *logrus.Logger
}

// state returns the current PlayerState as a single JSON object, the
// request/response counterpart to the /state_changes stream.
func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	sub := h.ch.Broadcaster.Subscribe()
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sub.Latest()); err != nil {
		h.log.WithFields(logrus.Fields{"error": err}).Warn("web port state encode failed")
	}
}

// stateChanges streams diff-compressed state as server-sent events, the
// browser-friendly counterpart to the binary Ports' EventStream.
func (h *handlers) stateChanges(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	for diff := range h.ch.EventStream(ctx) {
		data, err := json.Marshal(diff)
		if err != nil {
			h.log.WithFields(logrus.Fields{"error": err}).Warn("web port diff encode failed")
			return
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

// setVolume takes the raw integer as the whole request body, not a JSON
// object.
func (h *handlers) setVolume(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readRawBody(w, r)
	if !ok {
		return
	}
	volume, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "invalid volume", http.StatusBadRequest)
		return
	}
	h.push(w, messages.SetVolume(volume))
}

// playURL takes the raw URI as the whole request body, not a JSON object.
func (h *handlers) playURL(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readRawBody(w, r)
	if !ok {
		return
	}
	if raw == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	h.push(w, messages.PlayURL(raw))
}

func (h *handlers) playStation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index string `json:"index"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if body.Index == "" {
		http.Error(w, "missing index", http.StatusBadRequest)
		return
	}
	h.push(w, messages.PlayStation(body.Index))
}

func (h *handlers) playPause(w http.ResponseWriter, r *http.Request) {
	h.push(w, messages.PlayPause())
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.push(w, messages.Stop())
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		h.log.WithFields(logrus.Fields{"error": err}).Debug("web port decode failed, rejecting request")
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// readRawBody reads the entire request body as a trimmed string, for the
// endpoints whose wire format is a bare scalar rather than a JSON object.
func (h *handlers) readRawBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.WithFields(logrus.Fields{"error": err}).Debug("web port body read failed, rejecting request")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return "", false
	}
	return strings.TrimSpace(string(raw)), true
}

func (h *handlers) push(w http.ResponseWriter, cmd messages.Command) {
	h.ch.Bus.Push(cmd)
	w.WriteHeader(http.StatusAccepted)
}

// Serve starts an *http.Server on addr and blocks until ctx is cancelled.
func Serve(ctx context.Context, addr string, ch *ports.Channels, log *logrus.Logger, staticDir string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web port: failed to listen on %s: %w", addr, err)
	}
	return ServeListener(ctx, listener, ch, log, staticDir)
}

// ServeListener serves the web API and static assets on an already-bound
// listener until ctx is cancelled, letting the caller observe a bind
// failure before the server starts accepting.
func ServeListener(ctx context.Context, listener net.Listener, ch *ports.Channels, log *logrus.Logger, staticDir string) error {
	srv := &http.Server{
		Handler:           Router(ch, log, staticDir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{"addr": listener.Addr()}).Info("web port listening")
	err := srv.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
