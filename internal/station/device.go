package station

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rradio/internal/messages"
)

// mountedDevice abstracts the platform-specific device mount step: the
// Linux build mounts for real; other platforms report DeviceUnavailable,
// since device and network failures are routine for consumer audio
// hardware and are tolerated rather than assumed away.
type mountedDevice interface {
	// Path is the directory to walk once mounted.
	Path() string
	// Release unmounts/cleans up.
	Release()
}

func resolveCD(index string, cfg *deviceSection) (*messages.Playlist, *messages.StationError) {
	return resolveDeviceBacked(index, "CD", cfg.Device, mountCD)
}

func resolveUSB(index string, cfg *deviceSection) (*messages.Playlist, *messages.StationError) {
	return resolveDeviceBacked(index, "USB", cfg.Device, mountUSB)
}

func resolveDeviceBacked(index, label, device string, mount func(device string) (mountedDevice, error)) (*messages.Playlist, *messages.StationError) {
	if device == "" {
		return nil, messages.NewStationError(messages.StationBadDescriptor, fmt.Sprintf("%s descriptor for station %q has no device path", label, index))
	}

	mounted, err := mount(device)
	if err != nil {
		return nil, messages.WrapStationError(messages.StationDeviceUnavailable, fmt.Sprintf("%s device %q unavailable", label, device), err)
	}
	defer mounted.Release()

	tracks, err := walkTracksSorted(mounted.Path())
	if err != nil {
		return nil, messages.WrapStationError(messages.StationDeviceUnavailable, fmt.Sprintf("failed to read %s device %q", label, device), err)
	}

	return finitePlaylist(index, label, tracks)
}

// walkTracksSorted walks dir (artist/album/track layout when unstructured)
// and returns tracks ordered by path, lexicographically, case-insensitively
// — the tie-breaking rule for USB/CD track ordering.
func walkTracksSorted(dir string) ([]messages.Track, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		return strings.ToLower(paths[i]) < strings.ToLower(paths[j])
	})

	tracks := make([]messages.Track, 0, len(paths))
	for _, p := range paths {
		tracks = append(tracks, messages.NewTrack(p, ""))
	}
	return tracks, nil
}

// EjectCD asks the platform to open the CD tray at device, degrading to a
// "not supported" error on non-Linux builds.
func EjectCD(device string) error {
	return ejectCD(device)
}

// EjectUSB asks the platform to unmount the USB device mounted at
// mountPoint, degrading to a "not supported" error on non-Linux builds.
func EjectUSB(mountPoint string) error {
	return ejectUSB(mountPoint)
}
