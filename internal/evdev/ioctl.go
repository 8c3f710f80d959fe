// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package evdev

import (
	"bytes"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NameLen bounds the device name fetched by EVIOCGNAME.
const NameLen = 80

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocRead = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

// eviocgname is EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len).
func eviocgname(size int) uintptr {
	return ioc(iocRead, 'E', 0x06, uint32(size))
}

// DeviceName queries the name the driver reports for the input device open
// on fd. The result is truncated to NameLen-1 bytes.
func DeviceName(fd int) (string, error) {
	var buf [NameLen]byte
	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), eviocgname(len(buf)-1), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	if n < 1 {
		return "", nil
	}
	name := buf[:min(int(n), len(buf)-1)]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name), nil
}
