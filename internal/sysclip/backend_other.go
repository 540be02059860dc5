//go:build !darwin && !windows && !linux

package sysclip

// New returns the headless backend; this platform has no clipboard support.
func New() Backend { return Headless() }
