package neobench

import (
	_ "embed"
	"slices"
)

//go:embed benchsrc/matmul.c
var benchmarkSource []byte

// BenchmarkSource returns a copy of the embedded matrix-multiply kernel.
func BenchmarkSource() []byte {
	return slices.Clone(benchmarkSource)
}
