// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package evdev encodes and decodes Linux input subsystem records
// (struct input_event) and wraps the few ioctls magd needs.
package evdev

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event types (linux/input-event-codes.h).
const (
	EV_SYN = 0x00
	EV_ABS = 0x03
)

// SYN codes
const (
	SYN_REPORT = 0x00
)

// ABS axes. ABS_STATUS is the eCompass HAL alias for ABS_WHEEL and carries
// the calibration accuracy of an injected frame.
const (
	ABS_X      = 0x00
	ABS_Y      = 0x01
	ABS_Z      = 0x02
	ABS_RX     = 0x03
	ABS_RY     = 0x04
	ABS_RZ     = 0x05
	ABS_WHEEL  = 0x08
	ABS_STATUS = ABS_WHEEL
)

// timevalSize is the width of the timestamp that prefixes every record.
// 16 bytes on 64-bit kernels, 8 on 32-bit.
const timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

// Size is the number of bytes of one input_event record on this platform.
const Size = timevalSize + 8

// Event is one input_event without its timestamp.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

func (e Event) String() string {
	return fmt.Sprintf("type=0x%02x code=0x%02x value=%d", e.Type, e.Code, e.Value)
}

// IsSync reports whether e closes a batch of axis updates.
func (e Event) IsSync() bool {
	return e.Type == EV_SYN
}

// Abs returns an EV_ABS event for the given axis.
func Abs(code uint16, value int32) Event {
	return Event{Type: EV_ABS, Code: code, Value: value}
}

// Sync returns the SYN_REPORT marker.
func Sync() Event {
	return Event{Type: EV_SYN, Code: SYN_REPORT}
}

// Marshal encodes e into a full record with a zero timestamp. The kernel
// stamps injected events itself.
func (e Event) Marshal() []byte {
	buf := make([]byte, Size)
	e.put(buf)
	return buf
}

func (e Event) put(buf []byte) {
	clear(buf[:timevalSize])
	binary.NativeEndian.PutUint16(buf[timevalSize:], e.Type)
	binary.NativeEndian.PutUint16(buf[timevalSize+2:], e.Code)
	binary.NativeEndian.PutUint32(buf[timevalSize+4:], uint32(e.Value))
}

// Unmarshal decodes one record. buf must be exactly Size bytes long; any
// other length means the stream is out of step with record boundaries.
func Unmarshal(buf []byte) (Event, error) {
	if len(buf) != Size {
		return Event{}, fmt.Errorf("short input_event: got %d bytes, want %d", len(buf), Size)
	}
	return Event{
		Type:  binary.NativeEndian.Uint16(buf[timevalSize:]),
		Code:  binary.NativeEndian.Uint16(buf[timevalSize+2:]),
		Value: int32(binary.NativeEndian.Uint32(buf[timevalSize+4:])),
	}, nil
}

// MarshalAll concatenates the records for events, in order.
func MarshalAll(events ...Event) []byte {
	buf := make([]byte, len(events)*Size)
	for i, e := range events {
		e.put(buf[i*Size : (i+1)*Size])
	}
	return buf
}
