package driver

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeMinimalWAV builds a PCM WAV file with the given sample rate, bit
// depth, channel count and number of sample frames, for exercising
// durationWAV without any audio-encoding library.
func writeMinimalWAV(t *testing.T, path string, sampleRate, bitDepth, channels, frames int) {
	t.Helper()

	bytesPerFrame := channels * bitDepth / 8
	dataSize := frames * bytesPerFrame

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	byteRate := sampleRate * bytesPerFrame
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(bytesPerFrame))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writeMinimalWAV: %v", err)
	}
}

func TestDurationWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	// 1 second of mono 16-bit audio at 8000 Hz.
	writeMinimalWAV(t, path, 8000, 16, 1, 8000)

	d, err := durationWAV(path)
	if err != nil {
		t.Fatalf("durationWAV: %v", err)
	}
	if d != time.Second {
		t.Fatalf("duration = %v, want 1s", d)
	}
}

func TestDurationWAVRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(path, []byte("not a wav file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := durationWAV(path); err == nil {
		t.Fatal("expected error for malformed wav")
	}
}

func TestExtractTagsFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Some Track.wav")
	writeMinimalWAV(t, path, 8000, 16, 1, 1)

	tags, err := extractTags(path)
	if err != nil {
		t.Fatalf("extractTags: %v", err)
	}
	if tags.Title != "Some Track" {
		t.Fatalf("Title = %q, want %q", tags.Title, "Some Track")
	}
}

func TestCalculateDurationUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.ogg")
	if err := os.WriteFile(path, []byte("whatever"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := calculateDuration(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
