package neobench

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// HostInfo describes the machine a batch ran on.
type HostInfo struct {
	Hostname  string   `json:"hostname"`
	GOOS      string   `json:"goos"`
	GOARCH    string   `json:"goarch"`
	CPUModel  string   `json:"cpu_model"`
	NumCPU    int      `json:"numcpu"`
	Available int      `json:"available_cpus"`
	Features  []string `json:"features,omitempty"`
}

// DetectHost gathers [HostInfo] for the running machine.
func DetectHost() HostInfo {
	hostname, _ := os.Hostname()

	model := "unknown"

	data, err := os.ReadFile("/proc/cpuinfo")
	if err == nil {
		model = cpuModelFromCPUInfo(data)
	}

	return HostInfo{
		Hostname:  hostname,
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		CPUModel:  model,
		NumCPU:    runtime.NumCPU(),
		Available: AvailableCPUs(),
		Features:  CPUFeatures(runtime.GOARCH),
	}
}

// CPUFeatures lists the SIMD-relevant features golang.org/x/sys/cpu detected.
func CPUFeatures(goarch string) []string {
	var features []string

	add := func(has bool, name string) {
		if has {
			features = append(features, name)
		}
	}

	switch goarch {
	case "arm64":
		add(cpu.ARM64.HasASIMD, "asimd")
		add(cpu.ARM64.HasFPHP, "fphp")
		add(cpu.ARM64.HasASIMDHP, "asimdhp")
		add(cpu.ARM64.HasASIMDDP, "asimddp")
		add(cpu.ARM64.HasASIMDFHM, "asimdfhm")
		add(cpu.ARM64.HasSVE, "sve")
		add(cpu.ARM64.HasSVE2, "sve2")
		add(cpu.ARM64.HasATOMICS, "lse")
		add(cpu.ARM64.HasCRC32, "crc32")
		add(cpu.ARM64.HasAES, "aes")
	case "amd64":
		add(cpu.X86.HasSSE42, "sse4.2")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
		add(cpu.X86.HasAVX512BW, "avx512bw")
		add(cpu.X86.HasAVX512VL, "avx512vl")
		add(cpu.X86.HasAVX512VNNI, "avx512vnni")
	}

	return features
}

// Arm part numbers for implementer 0x41, enough to name Neoverse cores,
// which report no "model name" in /proc/cpuinfo.
var armParts = map[string]string{
	"0xd0c": "Neoverse-N1",
	"0xd40": "Neoverse-V1",
	"0xd49": "Neoverse-N2",
	"0xd4f": "Neoverse-V2",
	"0xd84": "Neoverse-V3",
	"0xd8e": "Neoverse-N3",
}

// cpuModelFromCPUInfo extracts a CPU name from /proc/cpuinfo content.
func cpuModelFromCPUInfo(data []byte) string {
	fields := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		if _, seen := fields[key]; !seen {
			fields[key] = strings.TrimSpace(value)
		}
	}

	if v := fields["model name"]; v != "" {
		return v
	}

	if fields["cpu implementer"] == "0x41" {
		if name, ok := armParts[fields["cpu part"]]; ok {
			return name
		}
	}

	if v := fields["hardware"]; v != "" {
		return v
	}

	return "unknown"
}
