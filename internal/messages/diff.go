package messages

// PlayerStateDiff is the field-wise delta between two PlayerStates: a field
// is present iff its value differs from the port's last-acknowledged
// snapshot.
type PlayerStateDiff struct {
	Phase *PipelinePhase

	// PlaylistChanged is true iff CurrentPlaylist differs by identity from
	// the baseline; Playlist carries the new value (nil means "cleared").
	PlaylistChanged bool
	Playlist        *Playlist

	CurrentTrackIndexChanged bool
	HasCurrentTrack          *bool
	CurrentTrackIndex        *int

	TagsChanged bool
	Tags        *Tags

	Volume      *int
	Buffering   *int
	LatestError *string
}

// IsEmpty reports whether the diff carries no changes at all.
func (d PlayerStateDiff) IsEmpty() bool {
	return d.Phase == nil &&
		!d.PlaylistChanged &&
		!d.CurrentTrackIndexChanged &&
		!d.TagsChanged &&
		d.Volume == nil &&
		d.Buffering == nil &&
		d.LatestError == nil
}

// Diff computes the field-wise delta from baseline to latest. It returns the
// zero PlayerStateDiff (IsEmpty() == true) when nothing changed.
func Diff(baseline, latest PlayerState) PlayerStateDiff {
	var d PlayerStateDiff

	if baseline.Phase != latest.Phase {
		phase := latest.Phase
		d.Phase = &phase
	}

	if !baseline.CurrentPlaylist.SameAs(latest.CurrentPlaylist) {
		d.PlaylistChanged = true
		d.Playlist = latest.CurrentPlaylist
	}

	if baseline.HasCurrentTrack != latest.HasCurrentTrack || baseline.CurrentTrackIndex != latest.CurrentTrackIndex {
		d.CurrentTrackIndexChanged = true
		has := latest.HasCurrentTrack
		idx := latest.CurrentTrackIndex
		d.HasCurrentTrack = &has
		d.CurrentTrackIndex = &idx
	}

	if !baseline.Tags.Equal(latest.Tags) {
		d.TagsChanged = true
		tags := latest.Tags
		d.Tags = &tags
	}

	if baseline.Volume != latest.Volume {
		v := latest.Volume
		d.Volume = &v
	}

	if baseline.Buffering != latest.Buffering {
		b := latest.Buffering
		d.Buffering = &b
	}

	if baseline.LatestError != latest.LatestError {
		e := latest.LatestError
		d.LatestError = &e
	}

	return d
}

// FullDiff is an "everything has changed" diff used for a Port's initial
// snapshot: every field is present, including those whose value equals the
// empty PlayerState's.
func FullDiff(latest PlayerState) PlayerStateDiff {
	phase, has, idx := latest.Phase, latest.HasCurrentTrack, latest.CurrentTrackIndex
	tags, volume, buffering, latestError := latest.Tags, latest.Volume, latest.Buffering, latest.LatestError
	return PlayerStateDiff{
		Phase:                    &phase,
		PlaylistChanged:          true,
		Playlist:                 latest.CurrentPlaylist,
		CurrentTrackIndexChanged: true,
		HasCurrentTrack:          &has,
		CurrentTrackIndex:        &idx,
		TagsChanged:              true,
		Tags:                     &tags,
		Volume:                   &volume,
		Buffering:                &buffering,
		LatestError:              &latestError,
	}
}

// Apply mutates state in place per the diff's present fields. Used by the
// round-trip law test in this package to reconstruct a snapshot from a
// sequence of diffs.
func Apply(state *PlayerState, d PlayerStateDiff) {
	if d.Phase != nil {
		state.Phase = *d.Phase
	}
	if d.PlaylistChanged {
		state.CurrentPlaylist = d.Playlist
	}
	if d.CurrentTrackIndexChanged {
		state.HasCurrentTrack = *d.HasCurrentTrack
		state.CurrentTrackIndex = *d.CurrentTrackIndex
	}
	if d.TagsChanged {
		state.Tags = *d.Tags
	}
	if d.Volume != nil {
		state.Volume = *d.Volume
	}
	if d.Buffering != nil {
		state.Buffering = *d.Buffering
	}
	if d.LatestError != nil {
		state.LatestError = *d.LatestError
	}
}
