// Package scanner imports images from watched sources and runs the recurring
// auto-scan scheduler. Each source carries its own consecutive-failure
// counter acting as a circuit breaker: three failures in a row disable
// further automatic scans for that source until the counter is reset, while
// the scheduler loop itself always re-arms for the next tick.
package scanner
