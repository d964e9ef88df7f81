// Package cache provides the insertion-ordered owning store used by the
// program generator.
//
// # Store[K, V]
//
// A map that remembers insertion order. Lookups are O(1); Range, Find and
// Clear walk entries oldest first, which lets owners release cached objects
// in creation order:
//
//	shaders := cache.New[uint32, *shader.Shader]()
//	shaders.Put(flags, s)
//	s, ok := shaders.Get(flags)
//	shaders.Clear(func(_ uint32, s *shader.Shader) { s.Release() })
//
// # Thread Safety
//
// Store is safe for concurrent use and must not be copied after creation
// (it contains a mutex).
package cache
