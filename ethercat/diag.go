// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ethercat

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// DiagSnapshot mmaps a fixed-size scratch file and mirrors process
// images into it on demand, giving an out-of-process inspector (not
// part of this core) a live read-only view of bus state without adding
// any access path to the control loop itself. The file is truncated
// fresh on Open — this is a debug window, not persistence across
// restarts (explicitly out of scope, spec.md §1).
type DiagSnapshot struct {
	file *os.File
	data mmap.MMap
	size int
}

// OpenDiagSnapshot creates (or truncates) path and maps it at the given size.
func OpenDiagSnapshot(path string, size int) (*DiagSnapshot, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("ethercat: open diag snapshot %s: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("ethercat: resize diag snapshot %s: %w", path, err)
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ethercat: mmap diag snapshot %s: %w", path, err)
	}
	return &DiagSnapshot{file: f, data: data, size: size}, nil
}

// Write copies img's bits into the mapped region, starting at
// byteOffset. The cyclic thread calls this at most once per cycle, if
// at all; it is never on the hot path of any Device.Input/Output call.
func (d *DiagSnapshot) Write(byteOffset int, img *ProcessImage) error {
	raw := img.Bytes(byteOffset*8, len(img.bits)-byteOffset)
	if byteOffset+len(raw) > d.size {
		return fmt.Errorf("ethercat: diag snapshot too small: need %d bytes, have %d", byteOffset+len(raw), d.size)
	}
	copy(d.data[byteOffset:], raw)
	return nil
}

// Sync flushes the mapped pages to disk.
func (d *DiagSnapshot) Sync() error {
	return d.data.Flush()
}

// Close unmaps and closes the backing file.
func (d *DiagSnapshot) Close() error {
	err := d.data.Unmap()
	if cerr := d.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
