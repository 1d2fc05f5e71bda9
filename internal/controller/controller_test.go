package controller

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"rradio/internal/broadcaster"
	"rradio/internal/bus"
	"rradio/internal/config"
	"rradio/internal/driver"
	"rradio/internal/messages"
)

type fakeEngine struct {
	loads chan string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{loads: make(chan string, 16)}
}

func (e *fakeEngine) Load(ctx context.Context, uri string) (<-chan messages.PipelineEvent, error) {
	e.loads <- uri
	return make(chan messages.PipelineEvent), nil
}
func (e *fakeEngine) Play() error         { return nil }
func (e *fakeEngine) Pause() error        { return nil }
func (e *fakeEngine) Stop() error         { return nil }
func (e *fakeEngine) Seek(int) error      { return nil }
func (e *fakeEngine) SetVolume(int) error { return nil }

func newTestController() (*Controller, *fakeEngine) {
	cfg := config.Default()
	cfg.PauseBeforePlayingIncrement = config.Duration(time.Second)
	cfg.MaxPauseBeforePlaying = config.Duration(5 * time.Second)
	cfg.SmartGotoPreviousTrackDuration = config.Duration(2 * time.Second)

	engine := newFakeEngine()
	log := logrus.New()
	log.SetOutput(testDiscard{})

	c := New(bus.New(), broadcaster.New(messages.NewPlayerState(cfg.InitialVolume)), driver.New(engine), cfg, "", log)
	return c, engine
}

type testDiscard struct{}

func (testDiscard) Write(p []byte) (int, error) { return len(p), nil }

func TestSetVolumeClamps(t *testing.T) {
	c, _ := newTestController()

	c.setVolume(150)
	if c.state.Volume != 100 {
		t.Fatalf("Volume = %d, want 100", c.state.Volume)
	}

	c.setVolume(-10)
	if c.state.Volume != 0 {
		t.Fatalf("Volume = %d, want 0", c.state.Volume)
	}
}

func threeTrackPlaylist() *messages.Playlist {
	tracks := []messages.Track{
		messages.NewTrack("a.mp3", "A"),
		messages.NewTrack("b.mp3", "B"),
		messages.NewTrack("c.mp3", "C"),
	}
	return messages.NewPlaylist("01", "Three Tracks", tracks, messages.FiniteList)
}

func TestPreviousTrackSaturatesAtZero(t *testing.T) {
	c, _ := newTestController()
	c.playlist = threeTrackPlaylist()
	c.state.CurrentPlaylist = c.playlist
	c.trackIndex = 0
	c.state.SetCurrentTrack(0)
	c.trackStartedAt = time.Now()

	c.previousTrack()

	if c.trackIndex != 0 {
		t.Fatalf("trackIndex = %d, want 0 (saturated)", c.trackIndex)
	}
}

func TestPreviousTrackGoesBackWhenNotSaturated(t *testing.T) {
	c, _ := newTestController()
	c.playlist = threeTrackPlaylist()
	c.state.CurrentPlaylist = c.playlist
	c.trackIndex = 2
	c.state.SetCurrentTrack(2)
	c.trackStartedAt = time.Now()

	c.previousTrack()

	if c.trackIndex != 1 {
		t.Fatalf("trackIndex = %d, want 1", c.trackIndex)
	}
}

func TestStopClearsPlaylist(t *testing.T) {
	c, _ := newTestController()
	c.playlist = threeTrackPlaylist()
	c.state.CurrentPlaylist = c.playlist
	c.state.SetCurrentTrack(1)
	c.phase = phasePlayingTrack
	c.state.Phase = messages.PhasePlaying

	c.stop()

	if c.playlist != nil {
		t.Fatal("playlist should be nil after Stop")
	}
	if c.state.CurrentPlaylist != nil {
		t.Fatal("state.CurrentPlaylist should be nil after Stop")
	}
	if c.state.HasCurrentTrack {
		t.Fatal("HasCurrentTrack should be false after Stop")
	}
	if c.phase != phaseIdle {
		t.Fatalf("phase = %v, want phaseIdle", c.phase)
	}
	if c.state.Phase != messages.PhaseStopped {
		t.Fatalf("state.Phase = %v, want PhaseStopped", c.state.Phase)
	}
}

func TestEndOfStreamFiniteAdvancesTrack(t *testing.T) {
	c, engine := newTestController()
	c.playlist = threeTrackPlaylist()
	c.state.CurrentPlaylist = c.playlist
	c.trackIndex = 0
	c.state.SetCurrentTrack(0)
	c.phase = phasePlayingTrack

	c.onEndOfStream(context.Background())

	if c.trackIndex != 1 {
		t.Fatalf("trackIndex = %d, want 1", c.trackIndex)
	}
	select {
	case uri := <-engine.loads:
		if uri != "b.mp3" {
			t.Fatalf("loaded uri = %q, want %q", uri, "b.mp3")
		}
	default:
		t.Fatal("expected driver.Load to have been called for the next track")
	}
}

func TestEndOfStreamOnLastTrackGoesIdle(t *testing.T) {
	c, _ := newTestController()
	c.playlist = threeTrackPlaylist()
	c.state.CurrentPlaylist = c.playlist
	c.trackIndex = 2
	c.state.SetCurrentTrack(2)
	c.phase = phasePlayingTrack

	c.onEndOfStream(context.Background())

	if c.playlist != nil {
		t.Fatal("playlist should be cleared once the finite playlist ends")
	}
	if c.phase != phaseIdle {
		t.Fatalf("phase = %v, want phaseIdle", c.phase)
	}
}

func TestEndOfStreamLiveEntersBackoff(t *testing.T) {
	c, _ := newTestController()
	c.playlist = messages.NewPlaylist("", "live", []messages.Track{messages.NewTrack("http://example.com/stream", "")}, messages.LiveReconnect)
	c.state.CurrentPlaylist = c.playlist
	c.currentURI = "http://example.com/stream"
	c.state.SetCurrentTrack(0)
	c.phase = phasePlayingTrack

	c.onEndOfStream(context.Background())

	if c.phase != phaseBackingOffReconnect {
		t.Fatalf("phase = %v, want phaseBackingOffReconnect", c.phase)
	}
	if c.backoffDelay != time.Second {
		t.Fatalf("backoffDelay = %v, want 1s", c.backoffDelay)
	}
}

func TestErrorNotificationDoesNotClearLatestError(t *testing.T) {
	c, engine := newTestController()
	c.cfg.Notifications.Error = "error.mp3"
	c.cfg.PlayErrorSoundOnPipelineError = true

	c.state.LatestError = "connection refused"
	c.playErrorNotification(phaseIdle)

	select {
	case uri := <-engine.loads:
		if uri != "error.mp3" {
			t.Fatalf("loaded uri = %q, want error.mp3", uri)
		}
	default:
		t.Fatal("expected the error notification to have been loaded")
	}
	if c.phase != phasePlayingNotification {
		t.Fatalf("phase = %v, want phasePlayingNotification", c.phase)
	}

	c.onPhaseChanged(messages.PhasePlaying)

	if c.state.LatestError != "connection refused" {
		t.Fatalf("LatestError = %q, want it to survive the notification's own PhaseChanged(Playing)", c.state.LatestError)
	}
	if c.state.Phase == messages.PhasePlaying {
		t.Fatal("published Phase must not flip to Playing while playing a notification with no current track")
	}
	if c.state.HasCurrentTrack {
		t.Fatal("HasCurrentTrack must stay false while a notification plays with no track loaded")
	}
}

func TestNotificationPhaseChangeNeverPublishesPlayingWithoutTrack(t *testing.T) {
	c, _ := newTestController()
	c.phase = phasePlayingNotification
	c.state.ClearCurrentTrack()

	c.onPhaseChanged(messages.PhasePlaying)

	if c.state.Phase == messages.PhasePlaying && !c.state.HasCurrentTrack {
		t.Fatal("PlayerState must never have Phase = Playing while HasCurrentTrack is false")
	}
}

func TestPlaylistPrefixNotificationThenLoadsRealTrack(t *testing.T) {
	c, engine := newTestController()
	c.cfg.Notifications.PlaylistPrefix = "prefix.mp3"

	c.playlist = threeTrackPlaylist()
	c.state.CurrentPlaylist = c.playlist
	c.phase = phaseWaitingForPlaylist

	c.handleResolveResult(context.Background(), resolveResult{generation: c.liveGeneration, playlist: c.playlist})

	select {
	case uri := <-engine.loads:
		if uri != "prefix.mp3" {
			t.Fatalf("first load = %q, want prefix.mp3", uri)
		}
	default:
		t.Fatal("expected the playlist_prefix notification to load first")
	}
	if c.phase != phasePlayingNotification {
		t.Fatalf("phase = %v, want phasePlayingNotification", c.phase)
	}

	c.onEndOfStream(context.Background())

	select {
	case uri := <-engine.loads:
		if uri != "a.mp3" {
			t.Fatalf("second load = %q, want a.mp3 (the real station track)", uri)
		}
	default:
		t.Fatal("expected the real station track to load once the prefix notification ends")
	}
	if !c.state.HasCurrentTrack {
		t.Fatal("HasCurrentTrack should be true once the real track is loaded")
	}
}

func TestEjectStopsAndCallsPlatformEject(t *testing.T) {
	c, _ := newTestController()
	c.cfg.CD.Enabled = true
	c.cfg.CD.Device = "/dev/sr0"
	c.playlist = threeTrackPlaylist()
	c.state.CurrentPlaylist = c.playlist
	c.phase = phasePlayingTrack
	c.state.Phase = messages.PhasePlaying

	c.eject()

	if c.playlist != nil {
		t.Fatal("playlist should be cleared after Eject")
	}
	if c.phase != phaseIdle {
		t.Fatalf("phase = %v, want phaseIdle", c.phase)
	}
	if c.state.Phase != messages.PhaseStopped {
		t.Fatalf("state.Phase = %v, want PhaseStopped", c.state.Phase)
	}
}

func TestBackoffSchedule(t *testing.T) {
	c, _ := newTestController()
	c.currentURI = "http://example.com/stream"

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		c.enterBackoff(context.Background())
		if c.backoffDelay != w {
			t.Fatalf("attempt %d: delay = %v, want %v", i+1, c.backoffDelay, w)
		}
		if c.phase != phaseBackingOffReconnect {
			t.Fatalf("attempt %d: phase = %v, want phaseBackingOffReconnect", i+1, c.phase)
		}
	}

	// Sixth attempt: the cap (5s) was already hit once, so this one gives up.
	c.enterBackoff(context.Background())
	if c.state.LatestError == "" {
		t.Fatal("expected LatestError to be set once the cap is exceeded")
	}
	if c.phase != phaseIdle {
		t.Fatalf("phase = %v, want phaseIdle after giving up", c.phase)
	}
}
