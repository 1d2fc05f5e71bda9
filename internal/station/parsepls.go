package station

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"rradio/internal/messages"
)

// parsePLS reads a PLS playlist ([playlist] section, FileN/TitleN/
// NumberOfEntries keys), implemented directly against the format since no
// PLS-parsing library is available.
func parsePLS(path, index string) (*messages.Playlist, *messages.StationError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, messages.WrapStationError(messages.StationBadDescriptor, fmt.Sprintf("failed to read %s", path), err)
	}
	defer f.Close()

	files := map[int]string{}
	titles := map[int]string{}

	scanner := bufio.NewScanner(f)
	inPlaylist := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "[playlist]") {
			inPlaylist = true
			continue
		}
		if !inPlaylist {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case hasNumberedPrefix(key, "File"):
			n := numberSuffix(key, "File")
			files[n] = value
		case hasNumberedPrefix(key, "Title"):
			n := numberSuffix(key, "Title")
			titles[n] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, messages.WrapStationError(messages.StationBadDescriptor, fmt.Sprintf("failed to scan %s", path), err)
	}

	if len(files) == 0 {
		return nil, messages.NewStationError(messages.StationBadDescriptor, fmt.Sprintf("%s has no [playlist] File entries", path))
	}

	numbers := make([]int, 0, len(files))
	for n := range files {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	tracks := make([]messages.Track, 0, len(numbers))
	for _, n := range numbers {
		tracks = append(tracks, messages.NewTrack(files[n], titles[n]))
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return finitePlaylist(index, title, tracks)
}

func hasNumberedPrefix(key, prefix string) bool {
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	_, err := strconv.Atoi(key[len(prefix):])
	return err == nil
}

func numberSuffix(key, prefix string) int {
	n, _ := strconv.Atoi(key[len(prefix):])
	return n
}
