//go:build linux

package station

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// linuxMount mounts a block device read-only at a freshly created temp
// directory, and unmounts/removes it on Release.
type linuxMount struct {
	dir string
}

func (m *linuxMount) Path() string { return m.dir }

func (m *linuxMount) Release() {
	_ = syscall.Unmount(m.dir, 0)
	_ = os.Remove(m.dir)
}

func mountFilesystem(device, fstype string) (mountedDevice, error) {
	if _, err := os.Stat(device); err != nil {
		return nil, fmt.Errorf("device %q not present: %w", device, err)
	}

	dir, err := os.MkdirTemp("", "rradio-mount-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create mount point: %w", err)
	}

	if err := syscall.Mount(device, dir, fstype, syscall.MS_RDONLY, ""); err != nil {
		_ = os.Remove(dir)
		return nil, fmt.Errorf("failed to mount %q as %s: %w", device, fstype, err)
	}

	return &linuxMount{dir: dir}, nil
}

func mountCD(device string) (mountedDevice, error) {
	return mountFilesystem(device, "iso9660")
}

func mountUSB(device string) (mountedDevice, error) {
	return mountFilesystem(device, "vfat")
}

// cdromEjectIoctl is CDROMEJECT from linux/cdrom.h; golang.org/x/sys/unix
// carries the generic ioctl syscall wrapper but not this media-specific
// constant.
const cdromEjectIoctl = 0x5309

// ejectCD opens device and issues the CDROMEJECT ioctl to open the tray.
func ejectCD(device string) error {
	fd, err := unix.Open(device, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("failed to open %q for eject: %w", device, err)
	}
	defer unix.Close(fd)

	if err := unix.IoctlSetInt(fd, cdromEjectIoctl, 0); err != nil {
		return fmt.Errorf("CDROMEJECT ioctl on %q failed: %w", device, err)
	}
	return nil
}

// ejectUSB unmounts the configured mount point. mountUSB already unmounts
// its own temporary mount as soon as a station resolves, so this call
// usually just confirms nothing is left mounted there; it only does real
// work when an operator has mounted the device at that path out of band.
func ejectUSB(mountPoint string) error {
	if err := syscall.Unmount(mountPoint, 0); err != nil {
		return fmt.Errorf("failed to unmount %q: %w", mountPoint, err)
	}
	return nil
}
