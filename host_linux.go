//go:build linux

package neobench

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// AvailableCPUs returns the number of CPUs this process may run on.
//
// Uses the scheduler affinity mask so taskset/cgroup cpusets are honored,
// falling back to runtime.NumCPU.
func AvailableCPUs() int {
	var set unix.CPUSet

	err := unix.SchedGetaffinity(0, &set)
	if err != nil {
		return runtime.NumCPU()
	}

	if n := set.Count(); n > 0 {
		return n
	}

	return runtime.NumCPU()
}
