// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Role says what a handle is used for inside a session.
type Role int

const (
	RoleUnknown Role = iota
	RoleAccel
	RoleMag
	RoleOrientation
)

func (r Role) String() string {
	switch r {
	case RoleAccel:
		return "accel"
	case RoleMag:
		return "mag"
	case RoleOrientation:
		return "orientation"
	default:
		return "unknown"
	}
}

// Mode is the access mode a device node is opened with.
type Mode int

const (
	ReadOnly Mode = iota
	WriteOnly
)

func (m Mode) String() string {
	if m == WriteOnly {
		return "write-only"
	}
	return "read-only"
}

// flags returns the open(2) flags for m. Sources are non-blocking so a
// drain stops once the kernel queue is empty; waiting is done with poll.
func (m Mode) flags() int {
	if m == WriteOnly {
		return unix.O_WRONLY | unix.O_CLOEXEC
	}
	return unix.O_RDONLY | unix.O_NONBLOCK | unix.O_CLOEXEC
}

// Handle is an open input device node. The zero value is a closed handle.
type Handle struct {
	fd   int
	open bool
	role Role
	mode Mode
	name string
	path string
}

// Open opens path with the given mode.
func Open(path string, mode Mode) (*Handle, error) {
	fd, err := unix.Open(path, mode.flags(), 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return &Handle{fd: fd, open: true, mode: mode, path: path}, nil
}

// FromFD wraps an already open descriptor. The handle takes ownership of fd.
func FromFD(fd int, role Role, mode Mode, name string) *Handle {
	return &Handle{fd: fd, open: true, role: role, mode: mode, name: name}
}

// Tag assigns the session role and returns h.
func (h *Handle) Tag(role Role) *Handle {
	h.role = role
	return h
}

func (h *Handle) Fd() int      { return h.fd }
func (h *Handle) Role() Role   { return h.role }
func (h *Handle) Mode() Mode   { return h.mode }
func (h *Handle) Name() string { return h.name }
func (h *Handle) Path() string { return h.path }

// IsOpen reports whether the descriptor is still held.
func (h *Handle) IsOpen() bool {
	return h != nil && h.open
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s %q (%s, fd=%d)", h.role, h.name, h.path, h.fd)
}

// Read performs a single read(2). A non-blocking source with nothing queued
// returns unix.EAGAIN.
func (h *Handle) Read(p []byte) (int, error) {
	if !h.IsOpen() {
		return 0, os.ErrClosed
	}
	n, err := unix.Read(h.fd, p)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write performs a single write(2) of p.
func (h *Handle) Write(p []byte) (int, error) {
	if !h.IsOpen() {
		return 0, os.ErrClosed
	}
	n, err := unix.Write(h.fd, p)
	if err != nil {
		return 0, err
	}
	if n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Close releases the descriptor. Closing a closed or zero handle is a no-op.
func (h *Handle) Close() error {
	if !h.IsOpen() {
		return nil
	}
	h.open = false
	return unix.Close(h.fd)
}
