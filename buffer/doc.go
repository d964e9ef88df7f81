// Package buffer implements device buffers with nested locking and device
// backup/restore.
//
// [VertexBuffer], [IndexBuffer] and [UniformBuffer] share the storage core
// [DeviceBuffer]. Storage is chosen by usage class:
//
//   - [gpucore.UsageSoftware]: host memory only.
//   - other classes, managed: a HAL buffer plus a host shadow copy. Locks
//     work on the shadow and [DeviceBuffer.Upload] pushes it to the device.
//   - other classes, unmanaged: a mappable HAL buffer. Locks map it.
//
// Every buffer registers with its [gpucore.Context] and reports allocations
// and lock time to the context's statistics sink.
package buffer
