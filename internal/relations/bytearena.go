package relations

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ByteArena is a disk-backed, memory-mapped append-only buffer: the literal
// "growable byte buffer" the arena design is modeled on, for members
// arenas too large to comfortably hold as live Go values (tens-of-GB PBF
// inputs). It stores opaque byte payloads back to back in a file that
// grows geometrically, and is remapped whenever it grows. GobArena[T]
// layers typed Add/Get on top of it.
type ByteArena struct {
	file    *os.File
	mapping mmap.MMap
	fileLen int64

	entries    []byteEntry
	writeAt    int64
	pendingLen int64
	hasPending bool
}

type byteEntry struct {
	offset  int64
	length  int64
	removed bool
}

const byteArenaInitialSize = 64 << 20 // 64 MiB

// NewByteArena creates (or truncates) the file at path and maps it for
// read/write access.
func NewByteArena(path string) (*ByteArena, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("relations: create byte arena %s: %w", path, err)
	}
	if err := f.Truncate(byteArenaInitialSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("relations: size byte arena %s: %w", path, err)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("relations: map byte arena %s: %w", path, err)
	}
	return &ByteArena{file: f, mapping: m, fileLen: byteArenaInitialSize}, nil
}

// Close unmaps and closes the backing file. The arena must not be used
// afterward.
func (a *ByteArena) Close() error {
	if a.mapping != nil {
		if err := a.mapping.Unmap(); err != nil {
			return err
		}
		a.mapping = nil
	}
	return a.file.Close()
}

func (a *ByteArena) grow(need int64) error {
	newLen := a.fileLen
	for newLen < need {
		newLen *= 2
	}
	if err := a.mapping.Unmap(); err != nil {
		return fmt.Errorf("relations: unmap for growth: %w", err)
	}
	if err := a.file.Truncate(newLen); err != nil {
		return fmt.Errorf("relations: grow byte arena file: %w", err)
	}
	m, err := mmap.Map(a.file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("relations: remap byte arena: %w", err)
	}
	a.mapping = m
	a.fileLen = newLen
	return nil
}

// Add appends data as a tentative entry, growing the backing file/mapping
// if needed, and returns the offset it will occupy once committed.
func (a *ByteArena) Add(data []byte) Offset {
	need := a.writeAt + int64(len(data))
	if need > a.fileLen {
		if err := a.grow(need); err != nil {
			panic(invariantf("byte arena exhausted: %v", err))
		}
	}
	copy(a.mapping[a.writeAt:need], data)
	idx := len(a.entries)
	a.entries = append(a.entries, byteEntry{offset: a.writeAt, length: int64(len(data))})
	a.pendingLen = int64(len(data))
	a.hasPending = true
	return Offset(idx)
}

// Commit finalizes the most recent Add.
func (a *ByteArena) Commit() Offset {
	a.writeAt += a.pendingLen
	a.hasPending = false
	return Offset(len(a.entries) - 1)
}

// Rollback discards the most recent uncommitted Add.
func (a *ByteArena) Rollback() {
	if !a.hasPending {
		return
	}
	a.entries = a.entries[:len(a.entries)-1]
	a.hasPending = false
	a.pendingLen = 0
}

// Get returns the raw bytes stored at off. The slice aliases the mapping
// and is invalidated by the next Add that triggers growth, or by
// PurgeRemoved.
func (a *ByteArena) Get(off Offset) []byte {
	e := a.entries[off]
	return a.mapping[e.offset : e.offset+e.length]
}

// SetRemoved tombstones the entry at off.
func (a *ByteArena) SetRemoved(off Offset) {
	a.entries[off].removed = true
}

// PurgeRemoved compacts surviving entries to the front of the file,
// invoking listener.MovingInBuffer(old, new) for each one relocated.
func (a *ByteArena) PurgeRemoved(listener MoveListener) {
	writeAt := int64(0)
	write := 0
	for read := 0; read < len(a.entries); read++ {
		e := a.entries[read]
		if e.removed {
			continue
		}
		if writeAt != e.offset {
			copy(a.mapping[writeAt:writeAt+e.length], a.mapping[e.offset:e.offset+e.length])
		}
		a.entries[write] = byteEntry{offset: writeAt, length: e.length}
		if write != read {
			listener.MovingInBuffer(Offset(read), Offset(write))
		}
		writeAt += e.length
		write++
	}
	a.entries = a.entries[:write]
	a.writeAt = writeAt
}

// Len returns the number of entries (live and tombstoned).
func (a *ByteArena) Len() int { return len(a.entries) }

// Bytes returns the backing file's current mapped size.
func (a *ByteArena) Bytes() int { return int(a.fileLen) }
