package tasks

import "runtime"

// Heap is a snapshot of memory use.
type Heap struct {
	FreeKB     uint64
	InUseKB    uint64
	SysKB      uint64
	NumGC      uint32
	Goroutines int
}

// HeapStats reads the current memory statistics. Free is heap memory
// obtained from the OS but not in use.
func HeapStats() Heap {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Heap{
		FreeKB:     (m.HeapSys - m.HeapInuse) / 1024,
		InUseKB:    m.HeapInuse / 1024,
		SysKB:      m.Sys / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}
