package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/trace.wgsl
var traceShaderSource string

// Trace kernel binding slots
const (
	bindingUniforms = 0
	bindingSpheres  = 1
	bindingRaysIn   = 2
	bindingRaysOut  = 3
)

// TraceWorkgroupSize is the @workgroup_size of the trace kernel
const TraceWorkgroupSize = 64

// TraceKernel returns the wavefront bounce kernel
func TraceKernel() Kernel {
	return Kernel{
		Name:          "trace",
		Source:        traceShaderSource,
		EntryPoint:    "trace",
		WorkgroupSize: TraceWorkgroupSize,
		Layout: []BindingType{
			bindingUniforms: BindingUniform,
			bindingSpheres:  BindingReadOnlyStorage,
			bindingRaysIn:   BindingReadOnlyStorage,
			bindingRaysOut:  BindingStorage,
		},
		Host: hostTrace,
	}
}

// CompileWGSL compiles WGSL source to SPIR-V words
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// DispatchGrid splits the workgroups needed for n invocations into a 2D grid
// that respects maxPerDim. rowStride is the invocation count of one grid row.
func DispatchGrid(n, workgroupSize, maxPerDim uint32) (groupsX, groupsY, rowStride uint32) {
	if n == 0 {
		return 0, 0, 0
	}
	groups := (n + workgroupSize - 1) / workgroupSize
	groupsX = min(groups, maxPerDim)
	groupsY = (groups + groupsX - 1) / groupsX
	return groupsX, groupsY, groupsX * workgroupSize
}
