//go:build !linux

package station

import "fmt"

// Non-Linux builds have no mount syscall surface to probe, so CD/USB
// stations always report unavailable rather than pretending to support them.
func mountCD(device string) (mountedDevice, error) {
	return nil, fmt.Errorf("CD mounting is not supported on this platform")
}

func mountUSB(device string) (mountedDevice, error) {
	return nil, fmt.Errorf("USB mounting is not supported on this platform")
}

func ejectCD(device string) error {
	return fmt.Errorf("CD eject is not supported on this platform")
}

func ejectUSB(mountPoint string) error {
	return fmt.Errorf("USB eject is not supported on this platform")
}
