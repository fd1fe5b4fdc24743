package simd

import (
	"github.com/klauspost/cpuid/v2"
)

// CPUFeatures contains detected CPU SIMD capabilities
type CPUFeatures struct {
	Vendor    string
	HasAVX2   bool
	HasFMA    bool
	HasAVX512 bool
	HasNEON   bool
}

var (
	features       CPUFeatures
	implementation string
)

func init() {
	detectCPU()
}

// detectCPU selects the vek kernels when the CPU has the instructions they use,
// otherwise the portable loops.
func detectCPU() {
	features = CPUFeatures{
		Vendor:    cpuid.CPU.VendorString,
		HasAVX2:   cpuid.CPU.Supports(cpuid.AVX2),
		HasFMA:    cpuid.CPU.Supports(cpuid.FMA3),
		HasAVX512: cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
		HasNEON:   cpuid.CPU.Supports(cpuid.ASIMD),
	}

	switch {
	case features.HasAVX2 && features.HasFMA:
		implementation = "vek"
	default:
		implementation = "generic"
	}
}

// GetCPUFeatures returns the detected CPU capabilities
func GetCPUFeatures() CPUFeatures {
	return features
}

// GetImplementation returns the selected kernel implementation name
func GetImplementation() string {
	return implementation
}
