package station

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rradio/internal/messages"
)

// parseM3U reads an M3U/extended-M3U playlist, handling the #EXTM3U/
// #PLAYLIST/#EXTINF directives. Plain M3U (no #EXTM3U header) is just one
// URI per line.
func parseM3U(path, index string) (*messages.Playlist, *messages.StationError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, messages.WrapStationError(messages.StationBadDescriptor, fmt.Sprintf("failed to read %s", path), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var tracks []messages.Track
	pendingTitle := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "#EXTM3U" {
			continue
		}

		if rest, ok := strip(line, "#PLAYLIST:"); ok {
			title = strings.TrimSpace(rest)
			continue
		}

		if rest, ok := strip(line, "#EXTINF:"); ok {
			if _, info, found := strings.Cut(rest, ","); found {
				pendingTitle = strings.TrimSpace(info)
			}
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue // unrecognized directive, ignore
		}

		tracks = append(tracks, messages.NewTrack(line, pendingTitle))
		pendingTitle = ""
	}

	if err := scanner.Err(); err != nil {
		return nil, messages.WrapStationError(messages.StationBadDescriptor, fmt.Sprintf("failed to scan %s", path), err)
	}

	return finitePlaylist(index, title, tracks)
}

func strip(line, prefix string) (string, bool) {
	if strings.HasPrefix(line, prefix) {
		return line[len(prefix):], true
	}
	return "", false
}
