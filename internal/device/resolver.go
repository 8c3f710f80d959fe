// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package device finds Linux input device nodes by the name their driver
// reports and owns the raw descriptors opened on them.
package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/evdev"
)

// DefaultDir is where the kernel exposes evdev nodes.
const DefaultDir = "/dev/input"

// ErrNotFound is returned when no node in the directory reports the wanted
// name, or the directory cannot be read.
var ErrNotFound = errors.New("input device not found")

// NameFunc returns the driver-reported name of the device open on fd.
type NameFunc func(fd int) (string, error)

// Resolver scans a device directory for a node by name.
type Resolver struct {
	Dir       string
	QueryName NameFunc
	Log       log.FieldLogger
}

// NewResolver returns a resolver over dir that queries names with
// EVIOCGNAME. An empty dir means DefaultDir.
func NewResolver(dir string, logger log.FieldLogger) *Resolver {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Resolver{Dir: dir, QueryName: evdev.DeviceName, Log: logger}
}

// Resolve opens every entry of the directory in turn and returns the first
// one whose reported name equals name. Entries that cannot be opened are
// skipped, and every non-matching descriptor is closed before moving on.
func (r *Resolver) Resolve(name string, mode Mode) (*Handle, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		r.Log.Printf("couldn't read input directory %s: %v", r.Dir, err)
		return nil, fmt.Errorf("%q: %w: %v", name, ErrNotFound, err)
	}

	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		path := filepath.Join(r.Dir, e.Name())
		h, err := Open(path, mode)
		if err != nil {
			// busy or permission denied; keep scanning
			continue
		}
		got, err := r.QueryName(h.fd)
		if err != nil {
			got = ""
		}
		if got == name {
			h.name = got
			r.Log.Printf("input device %q opened %s, fd = %d", name, path, h.fd)
			return h, nil
		}
		h.Close()
	}

	r.Log.Printf("couldn't find %q input device in %s", name, r.Dir)
	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}
