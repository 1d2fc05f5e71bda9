// Package tcp implements the binary, length-prefixed Port transport: raw
// TCP, one gob-encoded frame per message, symmetrical in both directions.
// Per connection, one goroutine forwards decoded commands onto the bus
// while another writes the diff-compressed event stream; the connection
// closes when either side fails.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"rradio/internal/messages"
	"rradio/internal/ports"
)

// Serve listens on addr and accepts connections until ctx is cancelled.
func Serve(ctx context.Context, addr string, ch *ports.Channels, log *logrus.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp port: failed to listen on %s: %w", addr, err)
	}
	return ServeListener(ctx, listener, ch, log)
}

// ServeListener accepts connections on an already-bound listener until ctx
// is cancelled, letting the caller observe a bind failure before spawning
// the accept loop. Each connection is handled on its own pair of goroutines
// and is independent of every other connection — Ports never share state
// with each other.
func ServeListener(ctx context.Context, listener net.Listener, ch *ports.Channels, log *logrus.Logger) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	log.WithFields(logrus.Fields{"addr": listener.Addr()}).Info("tcp port listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.WithFields(logrus.Fields{"error": err}).Warn("tcp port accept failed")
				return err
			}
		}
		go handleConnection(ctx, conn, ch, log)
	}
}

func handleConnection(ctx context.Context, conn net.Conn, ch *ports.Channels, log *logrus.Logger) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		writeEvents(connCtx, conn, ch, log)
		_ = conn.Close() // unblocks readCommands so a write failure closes the Port too
	}()
	readCommands(connCtx, conn, ch, log)
}

// writeEvents streams diff-compressed state to the client until the
// connection or context ends.
func writeEvents(ctx context.Context, conn net.Conn, ch *ports.Channels, log *logrus.Logger) {
	for diff := range ch.EventStream(ctx) {
		if err := writeFrame(conn, diff); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Debug("tcp port write failed, closing")
			return
		}
	}
}

// readCommands decodes length-prefixed gob frames from the client and
// enqueues them onto the bus until an I/O error terminates the connection.
// A decode error closes this Port only, not the Controller.
func readCommands(ctx context.Context, conn net.Conn, ch *ports.Channels, log *logrus.Logger) {
	reader := bufio.NewReader(conn)
	for {
		var cmd messages.Command
		if err := readFrame(reader, &cmd); err != nil {
			if err != io.EOF {
				log.WithFields(logrus.Fields{"error": err}).Debug("tcp port read failed, closing")
			}
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

// writeFrame writes a 4-byte big-endian length prefix followed by the
// gob-encoded value, grounded on tcp_binary.rs's length-prefixed framing.
func writeFrame(w io.Writer, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(buf.Len()))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readFrame(r io.Reader, v any) error {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(length[:])
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(buf)).Decode(v)
}
