package neobench

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	perfLine = regexp.MustCompile(`(?m)^Performance:\s*([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*GFLOPS`)
	timeLine = regexp.MustCompile(`(?m)^Time:\s*([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*seconds`)

	errNoThroughput   = errors.New("no throughput line")
	errNoTime         = errors.New("no time line")
	errZeroThroughput = errors.New("zero throughput")
)

// ParseBenchOutput extracts GFLOPS and wall seconds from benchmark stdout.
//
// Both the "Performance: <x> GFLOPS" and "Time: <x> seconds" lines must be
// present. The last occurrence of each wins.
func ParseBenchOutput(out []byte) (gflops, seconds float64, err error) {
	gflops, err = lastFloat(perfLine, out, errNoThroughput)
	if err != nil {
		return 0, 0, fmt.Errorf("parse throughput: %w", err)
	}

	if gflops == 0 {
		return 0, 0, fmt.Errorf("parse throughput: %w", errZeroThroughput)
	}

	seconds, err = lastFloat(timeLine, out, errNoTime)
	if err != nil {
		return 0, 0, fmt.Errorf("parse time: %w", err)
	}

	return gflops, seconds, nil
}

func lastFloat(re *regexp.Regexp, out []byte, missing error) (float64, error) {
	matches := re.FindAllSubmatch(out, -1)
	if len(matches) == 0 {
		return 0, missing
	}

	v, err := strconv.ParseFloat(string(matches[len(matches)-1][1]), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}

	return v, nil
}
