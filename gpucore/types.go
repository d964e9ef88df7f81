package gpucore

import "fmt"

// Usage classifies how a device buffer is going to be written and read.
type Usage int

// Buffer usage classes.
const (
	// UsageStatic is written once and drawn many times.
	UsageStatic Usage = iota

	// UsageDynamic is rewritten frequently and drawn many times.
	UsageDynamic

	// UsageWriteOnly is written by the host and never read back.
	UsageWriteOnly

	// UsageSoftware lives in host memory only and never gets device storage.
	UsageSoftware
)

// String returns the string representation of Usage.
func (u Usage) String() string {
	switch u {
	case UsageStatic:
		return "Static"
	case UsageDynamic:
		return "Dynamic"
	case UsageWriteOnly:
		return "WriteOnly"
	case UsageSoftware:
		return "Software"
	default:
		return fmt.Sprintf("Unknown(%d)", int(u))
	}
}

// LockMode selects the access a buffer lock grants.
type LockMode int

// Lock modes.
const (
	// LockReadOnly grants read access. Unlocking does not mark data dirty.
	LockReadOnly LockMode = iota

	// LockWriteOnly grants write access.
	LockWriteOnly

	// LockReadWrite grants read and write access.
	LockReadWrite
)

// String returns the string representation of LockMode.
func (m LockMode) String() string {
	switch m {
	case LockReadOnly:
		return "ReadOnly"
	case LockWriteOnly:
		return "WriteOnly"
	case LockReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Writes reports whether the mode allows writing.
func (m LockMode) Writes() bool {
	return m == LockWriteOnly || m == LockReadWrite
}

// BufferKind identifies the role of a device buffer for accounting.
type BufferKind int

// Buffer kinds.
const (
	BufferVertex BufferKind = iota
	BufferIndex
	BufferUniform

	bufferKindCount
)

// String returns the string representation of BufferKind.
func (k BufferKind) String() string {
	switch k {
	case BufferVertex:
		return "Vertex"
	case BufferIndex:
		return "Index"
	case BufferUniform:
		return "Uniform"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}
