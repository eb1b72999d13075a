//go:build linux

package scsi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sgIoHdr mirrors sg_io_hdr_t from <scsi/sg.h>.
type sgIoHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

const (
	sgDxferNone     = -1
	sgDxferToDev    = -2
	sgDxferFromDev  = -3
	sgIoIoctl       = 0x2285
	sgInfoOKMask    = 0x1
	sgInfoOK        = 0x0
	maxSenseLen     = 64
)

type linuxDevice struct {
	fd int
}

func openDevice(path string) (Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &linuxDevice{fd: fd}, nil
}

func (d *linuxDevice) Close() error {
	return unix.Close(d.fd)
}

func (d *linuxDevice) Ioctl(cdb []byte, data []byte, writeToDevice bool) (byte, []byte, error) {
	sense := make([]byte, maxSenseLen)

	direction := int32(sgDxferNone)
	var dxferp uintptr
	if len(data) > 0 {
		dxferp = uintptr(unsafe.Pointer(&data[0]))
		if writeToDevice {
			direction = sgDxferToDev
		} else {
			direction = sgDxferFromDev
		}
	}

	hdr := sgIoHdr{
		interfaceID:    'S',
		dxferDirection: direction,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        uint8(len(sense)),
		dxferLen:       uint32(len(data)),
		dxferp:         dxferp,
		cmdp:           uintptr(unsafe.Pointer(&cdb[0])),
		sbp:            uintptr(unsafe.Pointer(&sense[0])),
		timeout:        uint32(CommandTimeout.Milliseconds()),
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), sgIoIoctl, uintptr(unsafe.Pointer(&hdr)))
	if errno != 0 {
		return 0, nil, TransportError{Op: "ioctl", Err: errno}
	}
	if hdr.info&sgInfoOKMask != sgInfoOK {
		return hdr.status, sense[:hdr.sbLenWr], nil
	}
	return 0, sense[:hdr.sbLenWr], nil
}
