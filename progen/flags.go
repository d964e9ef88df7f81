package progen

import "fmt"

// Flags selects one program variant: a vertex and a fragment flag word, each
// with the preprocessor defines its bits stand for.
//
// Callers own the bit assignment. Two callers sharing a generator must agree
// on it; flags that collide are not detected.
type Flags struct {
	vertex          uint32
	fragment        uint32
	vertexDefines   []string
	fragmentDefines []string
}

// AddVertexFlag sets bit in the vertex word and records define. A bit that
// is already set is ignored, so its define is emitted once.
func (f *Flags) AddVertexFlag(bit uint32, define string) {
	if f.vertex&bit == bit {
		return
	}
	f.vertex |= bit
	f.vertexDefines = append(f.vertexDefines, define)
}

// AddFragmentFlag sets bit in the fragment word and records define.
func (f *Flags) AddFragmentFlag(bit uint32, define string) {
	if f.fragment&bit == bit {
		return
	}
	f.fragment |= bit
	f.fragmentDefines = append(f.fragmentDefines, define)
}

// VertexKey returns the vertex flag word.
func (f *Flags) VertexKey() uint32 { return f.vertex }

// FragmentKey returns the fragment flag word.
func (f *Flags) FragmentKey() uint32 { return f.fragment }

// VertexDefines returns the vertex defines in insertion order.
func (f *Flags) VertexDefines() []string { return f.vertexDefines }

// FragmentDefines returns the fragment defines in insertion order.
func (f *Flags) FragmentDefines() []string { return f.fragmentDefines }

// Key returns the program cache key.
func (f *Flags) Key() Key { return Key{Vertex: f.vertex, Fragment: f.fragment} }

// Reset clears both words and define lists, keeping their capacity.
func (f *Flags) Reset() {
	f.vertex = 0
	f.fragment = 0
	f.vertexDefines = f.vertexDefines[:0]
	f.fragmentDefines = f.fragmentDefines[:0]
}

// Key identifies a program variant.
type Key struct {
	Vertex   uint32
	Fragment uint32
}

// Packed returns Vertex | Fragment<<32.
func (k Key) Packed() uint64 { return uint64(k.Vertex) | uint64(k.Fragment)<<32 }

// String returns the key as "vertex/fragment" in hex.
func (k Key) String() string { return fmt.Sprintf("%#x/%#x", k.Vertex, k.Fragment) }
