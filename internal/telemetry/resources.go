package telemetry

import (
	"log"
	"runtime"
	"time"
)

// MonitorResources periodically logs goroutine and heap usage, useful when
// running a multi-node simulation long enough for a leak to show up.
func MonitorResources(interval time.Duration, stop <-chan struct{}) {
	go func() {
		var mem runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&mem)
				log.Printf("telemetry: goroutines=%d heap_alloc_kb=%.1f heap_objects=%d",
					runtime.NumGoroutine(), float64(mem.HeapAlloc)/1024, mem.HeapObjects)
			case <-stop:
				return
			}
		}
	}()
}
