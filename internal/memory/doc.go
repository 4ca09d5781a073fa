// Package memory provides the adaptive memory monitor that throttles
// extraction work under pressure.
//
// The monitor samples host memory usage at most once per sampling interval,
// exposes a should-reclaim decision based on warning and critical
// thresholds, and performs reclamation (GC plus returning freed pages to
// the OS; aggressive reclamation additionally clears the result cache).
//
// Sampling failures degrade to a zeroed sample and never abort callers:
// on platforms where the memory API is unavailable the pipeline simply
// runs without memory management.
//
//	mon := memory.NewMonitor(memory.Config{Cache: resultCache})
//	if mon.ShouldReclaim() {
//	    stats := mon.Reclaim(mon.CriticalPressure())
//	    _ = stats.FreedMB
//	}
package memory
