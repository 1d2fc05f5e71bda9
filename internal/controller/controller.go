// Package controller implements the Controller state machine: the
// single-goroutine, event-driven loop that owns PlayerState, consumes
// commands, drives the resolver and playback driver, advances tracks,
// handles pipeline events, and publishes state. It is the sole writer of
// PlayerState, publishing a fresh copy instead of handing out a mutex, and
// it never blocks anywhere except at its single top-level select.
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rradio/internal/broadcaster"
	"rradio/internal/bus"
	"rradio/internal/config"
	"rradio/internal/driver"
	"rradio/internal/messages"
	"rradio/internal/station"
)

// phaseKind is the Controller's internal state, a superset of the public
// PipelinePhase: it additionally distinguishes WaitingForPlaylist,
// BackingOffReconnect and PlayingNotification, none of which are published
// verbatim — they map onto PlayerState fields instead.
type phaseKind int

const (
	phaseIdle phaseKind = iota
	phaseWaitingForPlaylist
	phasePlayingTrack
	phasePausedTrack
	phaseBackingOffReconnect
	phasePlayingNotification
	phaseErrorState
)

// Controller is the sole writer of messages.PlayerState. Run must be called
// from exactly one goroutine.
type Controller struct {
	bus         *bus.Bus
	broadcaster *broadcaster.Broadcaster
	driver      *driver.Driver
	cfg         *config.Config
	stationsDir string
	log         *logrus.Logger

	phase      phaseKind
	state      messages.PlayerState
	playlist   *messages.Playlist
	trackIndex int
	currentURI string

	trackStartedAt time.Time

	notifications     notificationQueue
	notifyReturn      phaseKind
	pendingTrackIndex int

	backoffAttempt int
	backoffAtCap   bool
	backoffDelay   time.Duration
	backoffTimer   *time.Timer

	resolveCancel  context.CancelFunc
	liveGeneration uint64

	resolverResults chan resolveResult
}

type resolveResult struct {
	generation uint64
	playlist   *messages.Playlist
	err        *messages.StationError
}

// New builds a Controller ready for Run. cfg.InitialVolume seeds the
// published PlayerState.
func New(b *bus.Bus, bc *broadcaster.Broadcaster, drv *driver.Driver, cfg *config.Config, stationsDir string, log *logrus.Logger) *Controller {
	if log == nil {
		log = logrus.New()
	}
	return &Controller{
		bus:             b,
		broadcaster:     bc,
		driver:          drv,
		cfg:             cfg,
		stationsDir:     stationsDir,
		log:             log,
		phase:           phaseIdle,
		state:           messages.NewPlayerState(cfg.InitialVolume),
		resolverResults: make(chan resolveResult, 1),
	}
}

// Run drives the event loop until ctx is cancelled, the sole cooperative
// single-threaded owner of PlayerState. Cancellation stops the driver,
// publishes a terminal state, and closes the bus. Before entering the
// loop it plays the configured ready notification once, if any.
func (c *Controller) Run(ctx context.Context) {
	defer c.shutdown()

	if c.cfg.Notifications.Ready != "" {
		c.queueNotification(c.cfg.Notifications.Ready, messages.NotificationReady, phaseIdle)
		c.publish()
	}

	for {
		var timerC <-chan time.Time
		if c.backoffTimer != nil {
			timerC = c.backoffTimer.C
		}

		select {
		case <-ctx.Done():
			return

		case <-c.bus.Wake():
			for {
				cmd, ok := c.bus.TryNext()
				if !ok {
					break
				}
				c.handleCommand(ctx, cmd)
				c.publish()
			}

		case ev := <-c.driver.Events():
			c.handlePipelineEvent(ctx, ev)
			c.publish()

		case res := <-c.resolverResults:
			c.handleResolveResult(ctx, res)
			c.publish()

		case <-timerC:
			c.backoffTimer = nil
			c.handleBackoffExpiry(ctx)
			c.publish()
		}
	}
}

func (c *Controller) shutdown() {
	if c.resolveCancel != nil {
		c.resolveCancel()
	}
	_ = c.driver.Stop()
	c.phase = phaseIdle
	c.state.Phase = messages.PhaseStopped
	c.state.Version++
	c.broadcaster.Publish(c.state)
	c.bus.Close()
}

// publish recomputes nothing by itself (each handler mutates c.state
// directly); it only bumps the version and republishes when something
// actually changed. Handlers never publish mid-way through their own
// sub-steps — only once, at the end of handling an event.
func (c *Controller) publish() {
	before := c.broadcaster.Latest()
	if messages.Diff(before, c.state).IsEmpty() {
		return
	}
	c.state.Version = before.Version + 1
	c.broadcaster.Publish(c.state)
}

// --- commands -----------------------------------------------------------

func (c *Controller) handleCommand(ctx context.Context, cmd messages.Command) {
	switch cmd.Kind {
	case messages.CommandPlayStation:
		c.playStation(ctx, cmd.StationIndex)
	case messages.CommandPlayURL:
		c.playURL(cmd.URL)
	case messages.CommandStop:
		c.stop()
	case messages.CommandPlayPause:
		c.playPause()
	case messages.CommandPreviousTrack:
		c.previousTrack()
	case messages.CommandNextTrack:
		c.nextTrack()
	case messages.CommandSeekBackwards:
		c.seek(-cmd.SeekBy)
	case messages.CommandSeekForwards:
		c.seek(cmd.SeekBy)
	case messages.CommandVolumeUp:
		c.setVolume(c.state.Volume + c.cfg.VolumeOffset)
	case messages.CommandVolumeDown:
		c.setVolume(c.state.Volume - c.cfg.VolumeOffset)
	case messages.CommandSetVolume:
		c.setVolume(cmd.Volume)
	case messages.CommandEject:
		c.eject()
	case messages.CommandDebugPipeline:
		c.log.WithFields(logrus.Fields{
			"phase":      c.state.Phase,
			"hasTrack":   c.state.HasCurrentTrack,
			"trackIndex": c.trackIndex,
			"volume":     c.state.Volume,
		}).Info("debug pipeline snapshot requested")
	}
}

func (c *Controller) playStation(ctx context.Context, index string) {
	c.log.WithFields(logrus.Fields{"station": index}).Info("PlayStation")

	if c.resolveCancel != nil {
		c.resolveCancel()
	}
	_ = c.driver.Stop()

	c.playlist = nil
	c.state.ClearCurrentTrack()
	c.phase = phaseWaitingForPlaylist
	c.state.Phase = messages.PhaseBuffering

	resolveCtx, cancel := context.WithCancel(ctx)
	c.resolveCancel = cancel
	c.liveGeneration++
	generation := c.liveGeneration

	go func() {
		playlist, err := station.Resolve(resolveCtx, c.stationsDir, index)
		select {
		case c.resolverResults <- resolveResult{generation: generation, playlist: playlist, err: err}:
		case <-resolveCtx.Done():
		}
	}()
}

func (c *Controller) handleResolveResult(ctx context.Context, res resolveResult) {
	if res.generation != c.liveGeneration {
		return // superseded by a later PlayStation/PlayUrl
	}
	if c.phase != phaseWaitingForPlaylist {
		return
	}

	if res.err != nil {
		c.log.WithFields(logrus.Fields{"error": res.err}).Warn("station resolution failed")
		c.state.LatestError = res.err.Error()
		c.playErrorNotification(phaseIdle)
		return
	}

	c.playlist = res.playlist
	c.state.CurrentPlaylist = res.playlist

	if c.cfg.Notifications.PlaylistPrefix != "" {
		c.pendingTrackIndex = 0
		c.queueNotification(c.cfg.Notifications.PlaylistPrefix, messages.NotificationPlaylistPrefix, phasePlayingTrack)
		return
	}
	c.loadTrack(ctx, 0)
}

func (c *Controller) playURL(url string) {
	c.log.WithFields(logrus.Fields{"url": url}).Info("PlayUrl")
	if c.resolveCancel != nil {
		c.resolveCancel()
	}
	c.liveGeneration++ // a pending resolver result is now stale
	track := messages.NewTrack(url, url)
	c.playlist = messages.NewPlaylist("", url, []messages.Track{track}, messages.LiveReconnect)
	c.state.CurrentPlaylist = c.playlist
	c.loadTrack(context.Background(), 0)
}

func (c *Controller) stop() {
	c.log.Info("Stop")
	if c.resolveCancel != nil {
		c.resolveCancel()
		c.resolveCancel = nil
	}
	_ = c.driver.Stop()
	c.playlist = nil
	c.state.CurrentPlaylist = nil
	c.state.ClearCurrentTrack()
	c.state.Buffering = 0
	if c.backoffTimer != nil {
		c.backoffTimer.Stop()
		c.backoffTimer = nil
	}
	c.backoffAttempt = 0
	c.backoffAtCap = false
	c.phase = phaseIdle
	c.state.Phase = messages.PhaseStopped
}

// eject stops playback and clears the playlist like stop, then additionally
// asks the platform to physically eject whichever device-backed station is
// configured. Failure to eject degrades to a logged warning; it never
// leaves playback stopped-but-unreported.
func (c *Controller) eject() {
	c.stop()

	if c.cfg.CD.Enabled && c.cfg.CD.Device != "" {
		if err := station.EjectCD(c.cfg.CD.Device); err != nil {
			c.log.WithFields(logrus.Fields{"error": err, "device": c.cfg.CD.Device}).Warn("CD eject failed")
		}
	}
	if c.cfg.USB.Enabled && c.cfg.USB.MountPoint != "" {
		if err := station.EjectUSB(c.cfg.USB.MountPoint); err != nil {
			c.log.WithFields(logrus.Fields{"error": err, "device": c.cfg.USB.MountPoint}).Warn("USB eject failed")
		}
	}
}

func (c *Controller) playPause() {
	switch c.phase {
	case phasePlayingTrack:
		_ = c.driver.Pause()
		c.phase = phasePausedTrack
		c.state.Phase = messages.PhasePaused
	case phasePausedTrack:
		_ = c.driver.Play()
		c.phase = phasePlayingTrack
		c.state.Phase = messages.PhasePlaying
	}
}

func (c *Controller) previousTrack() {
	if c.playlist == nil || !c.state.HasCurrentTrack {
		return
	}
	if time.Since(c.trackStartedAt) < c.cfg.SmartGotoPreviousTrackDuration.Duration() {
		newIndex := c.trackIndex - 1
		if newIndex < 0 {
			newIndex = 0
		}
		c.loadTrack(context.Background(), newIndex)
		return
	}
	_ = c.driver.Seek(0)
}

func (c *Controller) nextTrack() {
	if c.playlist == nil || !c.state.HasCurrentTrack {
		return
	}
	newIndex := c.trackIndex + 1
	if newIndex >= len(c.playlist.Tracks) {
		c.finishFinitePlaylist()
		return
	}
	c.loadTrack(context.Background(), newIndex)
}

func (c *Controller) seek(by time.Duration) {
	_ = c.driver.Seek(int(by.Seconds()))
}

func (c *Controller) setVolume(v int) {
	c.state.SetVolume(v)
	_ = c.driver.SetVolume(c.state.Volume)
}

// --- pipeline events -----------------------------------------------------

func (c *Controller) handlePipelineEvent(ctx context.Context, ev messages.PipelineEvent) {
	switch ev.Kind {
	case messages.EventPhaseChanged:
		c.onPhaseChanged(ev.Phase)
	case messages.EventBufferingProgress:
		c.state.Buffering = ev.Percent
	case messages.EventTagsReceived:
		c.state.Tags = c.state.Tags.Merge(ev.Tags)
	case messages.EventEndOfStream:
		c.onEndOfStream(ctx)
	case messages.EventError:
		c.onDriverError(ev.ErrMessage)
	}
}

func (c *Controller) onPhaseChanged(phase messages.PipelinePhase) {
	if c.phase == phasePlayingNotification {
		// A notification's own PhaseChanged(Playing) is not real content
		// playing: the published Phase must not flip to Playing while
		// HasCurrentTrack is false, and the error that triggered an error
		// notification must stay visible until real playback resumes.
		return
	}

	c.state.Phase = phase
	if phase == messages.PhasePlaying {
		c.state.LatestError = ""
		c.backoffAttempt = 0
		c.backoffAtCap = false
		c.phase = phasePlayingTrack
	}
}

func (c *Controller) onEndOfStream(ctx context.Context) {
	if c.phase == phasePlayingNotification {
		c.advanceNotificationQueue(ctx)
		return
	}

	if c.playlist == nil {
		return
	}

	if c.playlist.Behaviour == messages.LiveReconnect {
		c.enterBackoff(ctx)
		return
	}

	newIndex := c.trackIndex + 1
	if newIndex >= len(c.playlist.Tracks) {
		c.finishFinitePlaylist()
		return
	}
	c.loadTrack(ctx, newIndex)
}

func (c *Controller) onDriverError(msg string) {
	c.log.WithFields(logrus.Fields{"error": msg}).Warn("driver error")
	c.state.LatestError = msg
	c.playErrorNotification(phaseIdle)
}

// enterBackoff schedules a reconnect attempt with a linearly increasing
// delay, capped at MaxPauseBeforePlaying: 1s, 2s, 3s, 4s, 5s, and once the
// cap has been hit once and the retry fails again, give up rather than
// retry forever.
func (c *Controller) enterBackoff(ctx context.Context) {
	if c.backoffAtCap {
		c.state.LatestError = fmt.Sprintf("lost connection to %s", c.currentURI)
		c.backoffAttempt = 0
		c.backoffAtCap = false
		c.playErrorNotification(phaseIdle)
		return
	}

	c.backoffAttempt++
	delay := time.Duration(c.backoffAttempt) * c.cfg.PauseBeforePlayingIncrement.Duration()
	if max := c.cfg.MaxPauseBeforePlaying.Duration(); delay >= max {
		delay = max
		c.backoffAtCap = true
	}

	c.backoffDelay = delay
	c.phase = phaseBackingOffReconnect
	c.state.Phase = messages.PhaseBuffering
	c.backoffTimer = time.NewTimer(delay)
	_ = ctx
}

func (c *Controller) handleBackoffExpiry(ctx context.Context) {
	if c.phase != phaseBackingOffReconnect {
		return
	}
	c.log.WithFields(logrus.Fields{"uri": c.currentURI}).Info("reconnect attempt")
	if err := c.driver.Load(ctx, c.currentURI); err != nil {
		c.onDriverError(err.Error())
		return
	}
	c.phase = phaseWaitingForPlaylist // reuses the buffering display until PhaseChanged(playing) arrives
	c.state.Phase = messages.PhaseBuffering
}

func (c *Controller) finishFinitePlaylist() {
	if c.cfg.Notifications.PlaylistSuffix != "" {
		c.queueNotification(c.cfg.Notifications.PlaylistSuffix, messages.NotificationPlaylistSuffix, phaseIdle)
		return
	}
	c.toIdle()
}

func (c *Controller) toIdle() {
	_ = c.driver.Stop()
	c.playlist = nil
	c.state.CurrentPlaylist = nil
	c.state.ClearCurrentTrack()
	c.phase = phaseIdle
	c.state.Phase = messages.PhaseStopped
}

// --- track loading --------------------------------------------------------

// loadTrack loads the track at index from the current playlist.
func (c *Controller) loadTrack(ctx context.Context, index int) {
	if c.playlist == nil || index < 0 || index >= len(c.playlist.Tracks) {
		return
	}
	track := c.playlist.Tracks[index]
	c.trackIndex = index
	c.currentURI = track.URI
	c.trackStartedAt = time.Now()

	c.state.SetCurrentTrack(index)
	c.state.Buffering = 0
	c.phase = phaseWaitingForPlaylist
	c.state.Phase = messages.PhaseBuffering

	if err := c.driver.Load(ctx, track.URI); err != nil {
		c.onDriverError(err.Error())
		return
	}
	_ = c.driver.SetVolume(c.state.Volume)
}

// --- notifications ---------------------------------------------------------

func (c *Controller) playErrorNotification(resume phaseKind) {
	if c.cfg.PlayErrorSoundOnPipelineError && c.cfg.Notifications.Error != "" {
		c.queueNotification(c.cfg.Notifications.Error, messages.NotificationError, resume)
		return
	}
	c.resumeAfterNotification(resume)
}

func (c *Controller) queueNotification(uri string, phase messages.NotificationPhase, resume phaseKind) {
	req := newNotificationRequest(uri, phase, resume)
	c.log.WithFields(logrus.Fields{"notification": req.id, "uri": uri}).Debug("queued notification")
	c.notifications.push(req)
	if c.phase != phasePlayingNotification {
		c.playNextNotification()
	}
}

func (c *Controller) playNextNotification() {
	req, ok := c.notifications.pop()
	if !ok {
		return
	}
	c.log.WithFields(logrus.Fields{"notification": req.id, "uri": req.uri}).Debug("playing notification")
	c.notifyReturn = req.resume
	c.phase = phasePlayingNotification
	if err := c.driver.Load(context.Background(), req.uri); err != nil {
		c.onDriverError(err.Error())
		return
	}
}

func (c *Controller) advanceNotificationQueue(ctx context.Context) {
	if !c.notifications.empty() {
		c.playNextNotification()
		return
	}
	resume := c.notifyReturn
	c.resumeAfterNotification(resume)
	_ = ctx
}

// resumeAfterNotification restores real playback once the notification
// queue drains: for the playlist_prefix case that means actually loading
// the pending track into the driver, not just flipping the published phase.
func (c *Controller) resumeAfterNotification(resume phaseKind) {
	switch resume {
	case phasePlayingTrack:
		c.loadTrack(context.Background(), c.pendingTrackIndex)
	default:
		c.toIdle()
	}
}
