//go:build !linux

package neobench

import "runtime"

// AvailableCPUs returns the number of CPUs this process may run on.
func AvailableCPUs() int {
	return runtime.NumCPU()
}
