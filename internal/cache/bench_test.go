package cache

import (
	"testing"
)

func BenchmarkStoreGet(b *testing.B) {
	s := New[uint64, int]()
	for i := 0; i < 100; i++ {
		s.Put(uint64(i)|uint64(i)<<32, i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Get(50 | 50<<32)
	}
}

func BenchmarkStorePut(b *testing.B) {
	s := New[uint64, int]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Put(uint64(i%100), i)
	}
}

func BenchmarkStoreFind(b *testing.B) {
	s := New[uint64, int]()
	for i := 0; i < 100; i++ {
		s.Put(uint64(i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Find(func(_ uint64, v int) bool { return v == 99 })
	}
}

func BenchmarkStoreParallelGet(b *testing.B) {
	s := New[uint64, int]()
	for i := 0; i < 100; i++ {
		s.Put(uint64(i), i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := uint64(0)
		for pb.Next() {
			s.Get(i % 100)
			i++
		}
	})
}
