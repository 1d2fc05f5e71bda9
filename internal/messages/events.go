package messages

// PipelineEventKind enumerates the event variants a MediaEngine emits to the
// Controller.
type PipelineEventKind int

const (
	EventPhaseChanged PipelineEventKind = iota
	EventBufferingProgress
	EventTagsReceived
	EventEndOfStream
	EventError
)

// PipelineEvent is the tagged union emitted by a MediaEngine as playback
// progresses.
type PipelineEvent struct {
	Kind PipelineEventKind

	Phase      PipelinePhase // PhaseChanged
	Percent    int           // BufferingProgress
	Tags       Tags          // TagsReceived
	ErrMessage string        // Error
}

func PhaseChangedEvent(p PipelinePhase) PipelineEvent {
	return PipelineEvent{Kind: EventPhaseChanged, Phase: p}
}

func BufferingProgressEvent(percent int) PipelineEvent {
	return PipelineEvent{Kind: EventBufferingProgress, Percent: percent}
}

func TagsReceivedEvent(tags Tags) PipelineEvent {
	return PipelineEvent{Kind: EventTagsReceived, Tags: tags}
}

func EndOfStreamEvent() PipelineEvent {
	return PipelineEvent{Kind: EventEndOfStream}
}

func ErrorEvent(message string) PipelineEvent {
	return PipelineEvent{Kind: EventError, ErrMessage: message}
}

// NotificationPhase names the point in the sequencing a synthetic
// notification plays between.
type NotificationPhase int

const (
	NotificationReady NotificationPhase = iota
	NotificationPlaylistPrefix
	NotificationPlaylistSuffix
	NotificationError
)
