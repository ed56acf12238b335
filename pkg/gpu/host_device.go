package gpu

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gogpu/gpucontext"
)

// Host device limits mirror the WebGPU defaults so batches planned against
// the host device also fit a real adapter.
const (
	hostMaxStorageBufferSize      = 128 << 20
	hostMaxWorkgroupsPerDimension = 65535
)

type hostBuffer struct {
	label    string
	data     []byte
	usage    BufferUsage
	released bool
}

func (b *hostBuffer) Size() uint64       { return uint64(len(b.data)) }
func (b *hostBuffer) Usage() BufferUsage { return b.usage }
func (b *hostBuffer) Release()           { b.released = true; b.data = nil }

type hostPipeline struct {
	kernel Kernel
}

func (p *hostPipeline) Release() {}

// HostDevice runs kernels on CPU goroutines. It enforces the same buffer
// usage rules as a WebGPU device: only MapRead buffers can be read back and
// copies need CopySrc/CopyDst.
type HostDevice struct {
	mu       sync.Mutex
	workers  int
	released bool
}

// NewHostDevice creates a host device. workers <= 0 means runtime.NumCPU().
func NewHostDevice(workers int) *HostDevice {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &HostDevice{workers: workers}
}

// Info describes the host device as a software adapter
func (d *HostDevice) Info() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: fmt.Sprintf("host (%d workers)", d.workers),
		Type: gpucontext.AdapterTypeSoftware,
	}
}

// Limits returns the WebGPU default limits
func (d *HostDevice) Limits() Limits {
	return Limits{
		MaxStorageBufferSize:      hostMaxStorageBufferSize,
		MaxWorkgroupsPerDimension: hostMaxWorkgroupsPerDimension,
	}
}

func (d *HostDevice) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return ErrReleased
	}
	return nil
}

// CreateBuffer allocates a zeroed buffer
func (d *HostDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("create buffer %s: size is zero", label)
	}
	if usage&UsageStorage != 0 && size > hostMaxStorageBufferSize {
		return nil, fmt.Errorf("create buffer %s (%d bytes): %w", label, size, ErrBufferTooLarge)
	}
	return &hostBuffer{label: label, data: make([]byte, size), usage: usage}, nil
}

func hostBufferOf(buf Buffer) (*hostBuffer, error) {
	hb, ok := buf.(*hostBuffer)
	if !ok || hb == nil {
		return nil, fmt.Errorf("buffer %T does not belong to the host device", buf)
	}
	if hb.released {
		return nil, fmt.Errorf("buffer %s: %w", hb.label, ErrReleased)
	}
	return hb, nil
}

// WriteBuffer copies data into buf at offset
func (d *HostDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	hb, err := hostBufferOf(buf)
	if err != nil {
		return err
	}
	if hb.usage&UsageCopyDst == 0 {
		return fmt.Errorf("write buffer %s: missing CopyDst usage", hb.label)
	}
	if offset+uint64(len(data)) > hb.Size() {
		return fmt.Errorf("write buffer %s: %d bytes at offset %d overflow %d", hb.label, len(data), offset, hb.Size())
	}
	copy(hb.data[offset:], data)
	return nil
}

// CreatePipeline accepts any kernel with a host form
func (d *HostDevice) CreatePipeline(kernel Kernel) (Pipeline, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if kernel.Host == nil {
		return nil, fmt.Errorf("create pipeline %s: kernel has no host implementation", kernel.Name)
	}
	if kernel.WorkgroupSize == 0 {
		return nil, fmt.Errorf("create pipeline %s: workgroup size is zero", kernel.Name)
	}
	return &hostPipeline{kernel: kernel}, nil
}

// Dispatch runs groupsX·groupsY workgroups, spread over the worker goroutines,
// and returns once every invocation has finished
func (d *HostDevice) Dispatch(pipeline Pipeline, bindings []Binding, groupsX, groupsY uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	hp, ok := pipeline.(*hostPipeline)
	if !ok || hp == nil {
		return fmt.Errorf("pipeline %T does not belong to the host device", pipeline)
	}
	kernel := hp.kernel
	if groupsX > hostMaxWorkgroupsPerDimension || groupsY > hostMaxWorkgroupsPerDimension {
		return fmt.Errorf("dispatch %s: %dx%d workgroups exceed %d per dimension",
			kernel.Name, groupsX, groupsY, hostMaxWorkgroupsPerDimension)
	}

	data := make([][]byte, len(kernel.Layout))
	for _, b := range bindings {
		if int(b.Index) >= len(kernel.Layout) {
			return fmt.Errorf("dispatch %s: binding %d out of range", kernel.Name, b.Index)
		}
		hb, err := hostBufferOf(b.Buffer)
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", kernel.Name, err)
		}
		if need := kernel.Layout[b.Index].requiredUsage(); hb.usage&need == 0 {
			return fmt.Errorf("dispatch %s: buffer %s bound at %d lacks usage %v", kernel.Name, hb.label, b.Index, need)
		}
		data[b.Index] = hb.data
	}
	for i, b := range data {
		if b == nil {
			return fmt.Errorf("dispatch %s: binding %d not bound", kernel.Name, i)
		}
	}

	invoke, err := kernel.Host(data)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", kernel.Name, err)
	}

	groups := uint64(groupsX) * uint64(groupsY)
	if groups == 0 {
		return nil
	}
	workers := min(uint64(d.workers), groups)
	chunk := (groups + workers - 1) / workers

	var wg sync.WaitGroup
	for w := range workers {
		start := w * chunk
		end := min(start+chunk, groups)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := start; g < end; g++ {
				gx, gy := uint32(g%uint64(groupsX)), uint32(g/uint64(groupsX))
				for local := range kernel.WorkgroupSize {
					invoke(gx*kernel.WorkgroupSize+local, gy)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

// CopyBuffer copies the first size bytes of src into dst
func (d *HostDevice) CopyBuffer(src, dst Buffer, size uint64) error {
	if err := d.check(); err != nil {
		return err
	}
	s, err := hostBufferOf(src)
	if err != nil {
		return err
	}
	t, err := hostBufferOf(dst)
	if err != nil {
		return err
	}
	if s.usage&UsageCopySrc == 0 || t.usage&UsageCopyDst == 0 {
		return fmt.Errorf("copy %s -> %s: missing CopySrc/CopyDst usage", s.label, t.label)
	}
	if size > s.Size() || size > t.Size() {
		return fmt.Errorf("copy %s -> %s: %d bytes exceed buffer size", s.label, t.label, size)
	}
	copy(t.data[:size], s.data[:size])
	return nil
}

// ReadBuffer returns a copy of the first size bytes of a MapRead buffer
func (d *HostDevice) ReadBuffer(ctx context.Context, buf Buffer, size uint64) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hb, err := hostBufferOf(buf)
	if err != nil {
		return nil, err
	}
	if hb.usage&UsageMapRead == 0 {
		return nil, fmt.Errorf("read buffer %s: missing MapRead usage", hb.label)
	}
	if size > hb.Size() {
		return nil, fmt.Errorf("read buffer %s: %d bytes exceed size %d", hb.label, size, hb.Size())
	}
	out := make([]byte, size)
	copy(out, hb.data[:size])
	return out, nil
}

// WaitIdle returns immediately; host dispatches are synchronous
func (d *HostDevice) WaitIdle() error {
	return d.check()
}

// Release marks the device released. Further calls return ErrReleased.
func (d *HostDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
}
