//go:build !linux && !windows

package scsi

import "runtime"

func openDevice(path string) (Device, error) {
	return nil, UnsupportedPlatformError{GOOS: runtime.GOOS}
}
