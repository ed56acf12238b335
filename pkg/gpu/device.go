// Package gpu renders scenes with a data-parallel wavefront tracer. Every
// camera ray of a batch lives in a storage buffer; one compute pass advances
// all of them by one bounce, reading one buffer and writing the other.
//
// The compute work goes through the Device interface, implemented by a
// WebGPU device (gogpu/wgpu) and by a host device that runs the same kernel
// on CPU goroutines.
package gpu

import (
	"context"
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Sentinel errors
var (
	// ErrDeviceUnavailable is returned when no adapter or device can be acquired.
	ErrDeviceUnavailable = errors.New("gpu: device unavailable")

	// ErrBufferTooLarge is returned when a batch needs a buffer bigger than
	// the device allows.
	ErrBufferTooLarge = errors.New("gpu: buffer exceeds device limit")

	// ErrUnknownDevice is returned when a device name is not registered.
	ErrUnknownDevice = errors.New("gpu: unknown device")

	// ErrReleased is returned by any call on a released device.
	ErrReleased = errors.New("gpu: device released")
)

// BufferUsage is the WebGPU usage bit set of a buffer
type BufferUsage = gputypes.BufferUsage

// Buffer usages understood by every Device
const (
	UsageMapRead = gputypes.BufferUsageMapRead
	UsageCopySrc = gputypes.BufferUsageCopySrc
	UsageCopyDst = gputypes.BufferUsageCopyDst
	UsageUniform = gputypes.BufferUsageUniform
	UsageStorage = gputypes.BufferUsageStorage
)

// BindingType is how a kernel accesses a bound buffer
type BindingType int

const (
	BindingUniform BindingType = iota
	BindingReadOnlyStorage
	BindingStorage
)

func (t BindingType) bufferBindingType() gputypes.BufferBindingType {
	switch t {
	case BindingUniform:
		return gputypes.BufferBindingTypeUniform
	case BindingReadOnlyStorage:
		return gputypes.BufferBindingTypeReadOnlyStorage
	default:
		return gputypes.BufferBindingTypeStorage
	}
}

func (t BindingType) requiredUsage() BufferUsage {
	if t == BindingUniform {
		return UsageUniform
	}
	return UsageStorage
}

// Buffer is an opaque device allocation
type Buffer interface {
	Size() uint64
	Usage() BufferUsage
	Release()
}

// Pipeline is a compiled compute kernel
type Pipeline interface {
	Release()
}

// Binding attaches a buffer to a kernel binding slot for one dispatch
type Binding struct {
	Index  uint32
	Buffer Buffer
}

// Kernel describes a compute kernel in both device forms: WGSL for WebGPU and
// a Go mirror for the host device. Layout lists the binding types indexed by
// binding number.
type Kernel struct {
	Name          string
	Source        string
	EntryPoint    string
	WorkgroupSize uint32
	Layout        []BindingType
	Host          HostKernel
}

// HostKernel binds raw buffer contents, indexed by binding number, and
// returns the function run once per invocation with its global invocation id
type HostKernel func(bindings [][]byte) (func(gidX, gidY uint32), error)

// Limits are the device limits the renderer plans batches against
type Limits struct {
	MaxStorageBufferSize      uint64
	MaxWorkgroupsPerDimension uint32
}

// Device is the compute abstraction the wavefront renderer drives. Dispatch
// blocks until the pass has completed, so consecutive dispatches observe each
// other's writes.
type Device interface {
	Info() gpucontext.AdapterInfo
	Limits() Limits
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	CreatePipeline(kernel Kernel) (Pipeline, error)
	Dispatch(pipeline Pipeline, bindings []Binding, groupsX, groupsY uint32) error
	CopyBuffer(src, dst Buffer, size uint64) error
	ReadBuffer(ctx context.Context, buf Buffer, size uint64) ([]byte, error)
	WaitIdle() error
	Release()
}
