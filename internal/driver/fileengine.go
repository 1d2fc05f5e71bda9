package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"

	"rradio/internal/messages"
)

// FileEngine plays local files by timer (sized to the file's real duration)
// and probes remote http/https URIs for reachability, treating them as
// live/infinite streams.
type FileEngine struct {
	httpClient *http.Client

	mu      sync.Mutex
	paused  bool
	timer   *time.Timer
	remain  time.Duration
	started time.Time
	volume  int
}

// NewFileEngine returns a MediaEngine backed by local file playback and
// HTTP(S) reachability probing.
func NewFileEngine() *FileEngine {
	return &FileEngine{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		volume:     100,
	}
}

func (e *FileEngine) Load(ctx context.Context, uri string) (<-chan messages.PipelineEvent, error) {
	events := make(chan messages.PipelineEvent, 8)

	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		go e.loadRemote(ctx, uri, events)
		return events, nil
	}

	go e.loadLocal(ctx, uri, events)
	return events, nil
}

func (e *FileEngine) loadLocal(ctx context.Context, path string, events chan<- messages.PipelineEvent) {
	defer close(events)

	send := func(ev messages.PipelineEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(messages.PhaseChangedEvent(messages.PhaseBuffering)) {
		return
	}

	duration, err := calculateDuration(path)
	if err != nil {
		duration = 0
	}

	tags, err := extractTags(path)
	if err != nil {
		send(messages.ErrorEvent(fmt.Sprintf("failed to read tags from %s: %v", path, err)))
	} else if !send(messages.TagsReceivedEvent(tags)) {
		return
	}

	if !send(messages.PhaseChangedEvent(messages.PhasePlaying)) {
		return
	}

	e.mu.Lock()
	e.remain = duration
	e.started = time.Now()
	e.paused = false
	e.mu.Unlock()

	if duration <= 0 {
		duration = time.Second
	}

	timer := time.NewTimer(duration)
	e.mu.Lock()
	e.timer = timer
	e.mu.Unlock()

	select {
	case <-timer.C:
		send(messages.EndOfStreamEvent())
	case <-ctx.Done():
		timer.Stop()
	}
}

// loadRemote probes a stream for reachability via a ranged GET and then
// treats it as infinite: once playing it only ends via context
// cancellation (Stop or a later Load) and never sends EndOfStream.
func (e *FileEngine) loadRemote(ctx context.Context, uri string, events chan<- messages.PipelineEvent) {
	defer close(events)

	send := func(ev messages.PipelineEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(messages.PhaseChangedEvent(messages.PhaseBuffering)) {
		return
	}
	if !send(messages.BufferingProgressEvent(0)) {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		send(messages.ErrorEvent(err.Error()))
		return
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		send(messages.ErrorEvent(fmt.Sprintf("failed to reach %s: %v", uri, err)))
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		send(messages.ErrorEvent(fmt.Sprintf("%s responded %d", uri, resp.StatusCode)))
		return
	}

	if !send(messages.BufferingProgressEvent(100)) {
		return
	}
	if !send(messages.PhaseChangedEvent(messages.PhasePlaying)) {
		return
	}

	// Live stream: block until cancelled or stopped. The Controller's
	// reconnect logic is driven by an EndOfStream event this engine never
	// sends for remote streams; the Controller's own tests exercise
	// BackingOffReconnect by calling its EndOfStream handling directly.
	<-ctx.Done()
}

func (e *FileEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil && e.paused {
		e.timer.Reset(e.remain)
		e.started = time.Now()
	}
	e.paused = false
	return nil
}

func (e *FileEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil && !e.paused {
		if e.timer.Stop() {
			e.remain -= time.Since(e.started)
			if e.remain < 0 {
				e.remain = 0
			}
		}
	}
	e.paused = true
	return nil
}

func (e *FileEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	return nil
}

func (e *FileEngine) Seek(offsetSeconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer == nil {
		return errors.New("no track loaded")
	}
	delta := time.Duration(offsetSeconds) * time.Second
	e.remain -= delta
	if e.remain < 0 {
		e.remain = 0
	}
	if !e.paused {
		e.timer.Reset(e.remain)
		e.started = time.Now()
	}
	return nil
}

func (e *FileEngine) SetVolume(percent int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = percent
	return nil
}

// extractTags reads embedded tag data via dhowden/tag, falling back to the
// filename when no frame is present.
func extractTags(path string) (messages.Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return messages.Tags{}, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return messages.Tags{Title: name}, nil
	}

	tags := messages.Tags{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
		Genre:  meta.Genre(),
		Comment: meta.Comment(),
	}
	if tags.Title == "" {
		tags.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if pic := meta.Picture(); pic != nil {
		tags.Image = pic.Data
	}
	return tags, nil
}

// calculateDuration dispatches to a format-specific duration reader.
func calculateDuration(path string) (time.Duration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return durationMP3(path)
	case ".flac":
		return durationFLAC(path)
	case ".wav":
		return durationWAV(path)
	default:
		return 0, fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}
}

func durationMP3(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return 0, err
			}
			break
		}
		total += fr.Duration()
		frames++
	}
	return total, nil
}

func durationFLAC(path string) (time.Duration, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples == 0 || si.SampleRate == 0 {
		return 0, fmt.Errorf("flac stream missing sample info")
	}
	secs := float64(si.NSamples) / float64(si.SampleRate)
	return time.Duration(secs * float64(time.Second)), nil
}

func durationWAV(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	const headerSize = int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	secs := float64(pcmBytes/bytesPerFrame) / float64(dec.SampleRate)
	return time.Duration(secs * float64(time.Second)), nil
}
