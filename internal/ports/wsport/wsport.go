// Package wsport implements the websocket Port: the same gob-encoded
// diff/command payloads as ports/tcp, carried one per websocket message
// instead of length-prefixed over a raw stream, since the websocket
// protocol already frames messages.
package wsport

import (
	"bytes"
	"context"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"rradio/internal/messages"
	"rradio/internal/ports"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades the HTTP request to a websocket connection and pumps
// diffs out / commands in until either side closes, mirroring
// handleConnection in ports/tcp.
func Handler(ch *ports.Channels, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Warn("websocket port upgrade failed")
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writeEvents(ctx, conn, ch, log)
		readCommands(ctx, conn, ch, log)
	}
}

func writeEvents(ctx context.Context, conn *websocket.Conn, ch *ports.Channels, log *logrus.Logger) {
	for diff := range ch.EventStream(ctx) {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(diff); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Warn("websocket port encode failed")
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("websocket port write failed, closing")
			return
		}
	}
}

func readCommands(ctx context.Context, conn *websocket.Conn, ch *ports.Channels, log *logrus.Logger) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("websocket port read failed, closing")
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		var cmd messages.Command
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&cmd); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("websocket port decode failed, closing")
			return
		}
		ch.Bus.Push(cmd)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
