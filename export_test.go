package neobench

// Export internal symbols for white-box tests in neobench package.
var (
	CPUModelFromCPUInfo = cpuModelFromCPUInfo
	TreeBytes           = treeBytes
	DefaultMinTrace     = defaultMinTraceBytes
	CombinationCount    = combinationCount
)

func (s *LockSet) Held(name string) bool { return s.isHeld(name) }
