// Package station resolves a two-digit station index into a playable
// messages.Playlist, scanning the stations directory for a matching file
// stem and dispatching by extension across playlist files, device-backed
// stations, and UPnP descriptors.
package station

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rradio/internal/messages"
)

// Resolve scans dir for a file whose stem equals index and dispatches to the
// matching parser.
func Resolve(ctx context.Context, dir, index string) (*messages.Playlist, *messages.StationError) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, messages.WrapStationError(messages.StationNotFound, fmt.Sprintf("cannot read stations directory %q", dir), err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem != index {
			continue
		}

		path := filepath.Join(dir, name)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".m3u":
			return parseM3U(path, index)
		case ".pls":
			return parsePLS(path, index)
		case ".toml":
			return resolveDescriptor(ctx, path, index)
		default:
			return nil, messages.NewStationError(messages.StationBadDescriptor, fmt.Sprintf("unsupported extension %q", filepath.Ext(name)))
		}
	}

	return nil, messages.NewStationError(messages.StationNotFound, fmt.Sprintf("no station %q in %q", index, dir))
}

func finitePlaylist(index, title string, tracks []messages.Track) (*messages.Playlist, *messages.StationError) {
	if len(tracks) == 0 {
		return nil, messages.NewStationError(messages.StationEmptyPlaylist, fmt.Sprintf("station %q has no tracks", index))
	}
	return messages.NewPlaylist(index, title, tracks, messages.FiniteList), nil
}
