//go:build windows

package scsi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// scsiPassThroughDirect mirrors SCSI_PASS_THROUGH_DIRECT from ntddscsi.h,
// the Windows counterpart to Linux's sg_io_hdr_t.
type scsiPassThroughDirect struct {
	length          uint16
	scsiStatus      uint8
	pathID          uint8
	targetID        uint8
	lun             uint8
	cdbLength       uint8
	senseInfoLength uint8
	dataIn          uint8
	dataTransferLen uint32
	timeOutValue    uint32
	dataBuffer      uintptr
	senseInfoOffset uint32
	cdb             [16]byte
}

const (
	ioctlScsiPassThroughDirect = 0x4D014
	scsiIoctlDataIn            = 1
	scsiIoctlDataOut           = 0
	scsiIoctlDataUnspecified   = 2
	maxSenseLenWindows         = 32
)

type windowsDevice struct {
	handle windows.Handle
}

func openDevice(path string) (Device, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("encode device path %s: %w", path, err)
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &windowsDevice{handle: h}, nil
}

func (d *windowsDevice) Close() error {
	return windows.CloseHandle(d.handle)
}

func (d *windowsDevice) Ioctl(cdb []byte, data []byte, writeToDevice bool) (byte, []byte, error) {
	if len(cdb) > 16 {
		return 0, nil, TransportError{Op: "ioctl", Err: fmt.Errorf("cdb length %d exceeds 16", len(cdb))}
	}

	dataIn := uint8(scsiIoctlDataUnspecified)
	var dataPtr uintptr
	if len(data) > 0 {
		dataPtr = uintptr(unsafe.Pointer(&data[0]))
		if writeToDevice {
			dataIn = scsiIoctlDataOut
		} else {
			dataIn = scsiIoctlDataIn
		}
	}

	sptd := scsiPassThroughDirect{
		length:          uint16(unsafe.Sizeof(scsiPassThroughDirect{})),
		cdbLength:       uint8(len(cdb)),
		senseInfoLength: maxSenseLenWindows,
		dataIn:          dataIn,
		dataTransferLen: uint32(len(data)),
		timeOutValue:    uint32(CommandTimeout.Seconds()),
		dataBuffer:      dataPtr,
	}
	copy(sptd.cdb[:], cdb)

	var bytesReturned uint32
	err := windows.DeviceIoControl(d.handle, ioctlScsiPassThroughDirect,
		(*byte)(unsafe.Pointer(&sptd)), uint32(unsafe.Sizeof(sptd)),
		(*byte)(unsafe.Pointer(&sptd)), uint32(unsafe.Sizeof(sptd)),
		&bytesReturned, nil)
	if err != nil {
		return 0, nil, TransportError{Op: "ioctl", Err: err}
	}
	return sptd.scsiStatus, nil, nil
}
