package gpucore

import (
	"fmt"
	"sync"
	"time"
)

// ResourceStats accumulates device-resource accounting counters.
//
// A ResourceStats is owned by the [Context] and handed by reference to every
// resource created on it. The counters are diagnostics only.
//
// All methods are safe for concurrent use and are no-ops on a nil receiver,
// so resources built without a context can report unconditionally.
type ResourceStats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// StatsSnapshot is a point-in-time copy of a [ResourceStats].
type StatsSnapshot struct {
	// Buffers is the number of live allocations per buffer kind.
	Buffers [bufferKindCount]int

	// BufferBytes is the number of allocated bytes per buffer kind.
	BufferBytes [bufferKindCount]uint64

	// Locks is the total number of outermost buffer locks.
	Locks uint64

	// LockTime is the accumulated time buffers spent locked.
	LockTime time.Duration

	// Shaders is the number of live shaders.
	Shaders int

	// Compiles and CompileFailures count shader compilations.
	Compiles        uint64
	CompileFailures uint64

	// CompileTime is the accumulated shader compile time.
	CompileTime time.Duration

	// Programs is the number of live programs.
	Programs int

	// Links and LinkFailures count program links.
	Links        uint64
	LinkFailures uint64
}

// TotalBuffers returns the number of live buffer allocations of every kind.
func (s StatsSnapshot) TotalBuffers() int {
	n := 0
	for _, c := range s.Buffers {
		n += c
	}
	return n
}

// TotalBufferBytes returns the number of allocated buffer bytes of every kind.
func (s StatsSnapshot) TotalBufferBytes() uint64 {
	var n uint64
	for _, c := range s.BufferBytes {
		n += c
	}
	return n
}

// String returns a human-readable summary.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("Resources[%d buffers (%d B), %d locks (%v), %d shaders, %d compiles (%d failed), %d programs, %d links (%d failed)]",
		s.TotalBuffers(), s.TotalBufferBytes(),
		s.Locks, s.LockTime,
		s.Shaders, s.Compiles, s.CompileFailures,
		s.Programs, s.Links, s.LinkFailures)
}

// BufferAllocated records a new buffer allocation of the given size.
func (r *ResourceStats) BufferAllocated(kind BufferKind, bytes int) {
	if r == nil || kind < 0 || kind >= bufferKindCount {
		return
	}
	r.mu.Lock()
	r.s.Buffers[kind]++
	r.s.BufferBytes[kind] += uint64(bytes)
	r.mu.Unlock()
}

// BufferReleased records the release of a buffer allocation.
func (r *ResourceStats) BufferReleased(kind BufferKind, bytes int) {
	if r == nil || kind < 0 || kind >= bufferKindCount {
		return
	}
	r.mu.Lock()
	if r.s.Buffers[kind] > 0 {
		r.s.Buffers[kind]--
	}
	if b := uint64(bytes); r.s.BufferBytes[kind] >= b {
		r.s.BufferBytes[kind] -= b
	} else {
		r.s.BufferBytes[kind] = 0
	}
	r.mu.Unlock()
}

// BufferLocked records the start of an outermost lock.
func (r *ResourceStats) BufferLocked() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.s.Locks++
	r.mu.Unlock()
}

// BufferUnlocked records the time an outermost lock was held.
func (r *ResourceStats) BufferUnlocked(held time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.s.LockTime += held
	r.mu.Unlock()
}

// ShaderCreated records a new shader object.
func (r *ResourceStats) ShaderCreated() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.s.Shaders++
	r.mu.Unlock()
}

// ShaderReleased records the release of a shader object.
func (r *ResourceStats) ShaderReleased() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.s.Shaders > 0 {
		r.s.Shaders--
	}
	r.mu.Unlock()
}

// ShaderCompiled records one compilation attempt.
func (r *ResourceStats) ShaderCompiled(took time.Duration, failed bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.s.Compiles++
	r.s.CompileTime += took
	if failed {
		r.s.CompileFailures++
	}
	r.mu.Unlock()
}

// ProgramCreated records a new program object.
func (r *ResourceStats) ProgramCreated() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.s.Programs++
	r.mu.Unlock()
}

// ProgramReleased records the release of a program object.
func (r *ResourceStats) ProgramReleased() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.s.Programs > 0 {
		r.s.Programs--
	}
	r.mu.Unlock()
}

// ProgramLinked records one link attempt.
func (r *ResourceStats) ProgramLinked(failed bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.s.Links++
	if failed {
		r.s.LinkFailures++
	}
	r.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (r *ResourceStats) Snapshot() StatsSnapshot {
	if r == nil {
		return StatsSnapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}

// ResetCounters zeroes the cumulative counters (locks, lock time, compiles,
// links) while keeping the live resource gauges.
func (r *ResourceStats) ResetCounters() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Locks = 0
	r.s.LockTime = 0
	r.s.Compiles = 0
	r.s.CompileFailures = 0
	r.s.CompileTime = 0
	r.s.Links = 0
	r.s.LinkFailures = 0
}
