// Package gpucore holds the device-level state shared by every resource in
// the ubershader renderer.
//
// A [Context] wraps the HAL device and queue that buffers, shaders and
// programs are created on. It also owns the [ResourceStats] sink those
// resources report into, and the ordered list of [Resource] values that take
// part in device backup and restore.
//
//	              +-------------------+
//	              |  gpucore.Context  |
//	              | device, queue,    |
//	              | stats, resources  |
//	              +---------+---------+
//	                        |
//	      +-----------------+-----------------+
//	      |                 |                 |
//	+-----v-----+    +------v------+   +------v------+
//	|  buffer   |    |   shader    |   |   progen    |
//	| Vertex/   |    | Shader/     |   | Generator   |
//	| Index/    |    | Program     |   | cache       |
//	| Uniform   |    |             |   |             |
//	+-----------+    +-------------+   +-------------+
//
// # Device Backup and Restore
//
// When the device is lost (or is about to be replaced), call
// [Context.BackupDeviceData] while the old device is still usable. Every
// registered resource snapshots its host-readable state and releases its
// device objects, newest first. After a replacement device has been opened,
// [Context.RestoreDeviceData] installs it and restores every resource in
// registration order.
//
// No other caller may lock a buffer or draw while a backup/restore sequence
// runs. The context does not enforce that exclusivity.
//
// # Statistics
//
// [ResourceStats] is observational only. It counts buffers, bytes, locks,
// lock time, shader compiles and program links. Nothing reads it to make
// decisions.
package gpucore
