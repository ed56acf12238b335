package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// WGPUDevice runs kernels on a WebGPU adapter
type WGPUDevice struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     gpucontext.AdapterInfo
	limits   Limits
	released bool
}

type wgpuPipeline struct {
	kernel         Kernel
	module         *wgpu.ShaderModule
	bindLayout     *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipeline       *wgpu.ComputePipeline
}

func (p *wgpuPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
	}
	if p.bindLayout != nil {
		p.bindLayout.Release()
	}
	if p.module != nil {
		p.module.Release()
	}
}

// OpenWGPU acquires a high-performance adapter and a device on it. Failures
// wrap ErrDeviceUnavailable.
func OpenWGPU() (*WGPUDevice, error) {
	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrDeviceUnavailable, err)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: request adapter: %w", ErrDeviceUnavailable, err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: request device: %w", ErrDeviceUnavailable, err)
	}

	queue := device.Queue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: device has no queue", ErrDeviceUnavailable)
	}

	adapterInfo := adapter.Info()
	deviceLimits := device.Limits()
	d := &WGPUDevice{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    queue,
		info: gpucontext.AdapterInfo{
			Name: adapterInfo.Name,
			Type: adapterType(adapterInfo.DeviceType),
		},
		limits: Limits{
			MaxStorageBufferSize:      min(deviceLimits.MaxStorageBufferBindingSize, deviceLimits.MaxBufferSize),
			MaxWorkgroupsPerDimension: deviceLimits.MaxComputeWorkgroupsPerDimension,
		},
	}
	core.Logger().Debug("wgpu device opened", "adapter", d.info.Name, "type", d.info.Type.String(),
		"max_storage_buffer", d.limits.MaxStorageBufferSize)
	return d, nil
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// Info returns the adapter name and type
func (d *WGPUDevice) Info() gpucontext.AdapterInfo { return d.info }

// Limits returns the device limits relevant to batch planning
func (d *WGPUDevice) Limits() Limits { return d.limits }

func (d *WGPUDevice) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return ErrReleased
	}
	return nil
}

func wgpuBufferOf(buf Buffer) (*wgpu.Buffer, error) {
	b, ok := buf.(*wgpu.Buffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("buffer %T does not belong to a wgpu device", buf)
	}
	return b, nil
}

// CreateBuffer allocates a device buffer
func (d *WGPUDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if usage&UsageStorage != 0 && size > d.limits.MaxStorageBufferSize {
		return nil, fmt.Errorf("create buffer %s (%d bytes): %w", label, size, ErrBufferTooLarge)
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %s: %w", label, err)
	}
	return buf, nil
}

// WriteBuffer uploads data through the queue
func (d *WGPUDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	b, err := wgpuBufferOf(buf)
	if err != nil {
		return err
	}
	if err := d.queue.WriteBuffer(b, offset, data); err != nil {
		return fmt.Errorf("write buffer %s: %w", b.Label(), err)
	}
	return nil
}

// CreatePipeline compiles the kernel's WGSL to SPIR-V and builds its bind
// group layout, pipeline layout and compute pipeline
func (d *WGPUDevice) CreatePipeline(kernel Kernel) (Pipeline, error) {
	if err := d.check(); err != nil {
		return nil, err
	}

	spirv, err := CompileWGSL(kernel.Source)
	if err != nil {
		return nil, fmt.Errorf("create pipeline %s: %w", kernel.Name, err)
	}

	p := &wgpuPipeline{kernel: kernel}
	fail := func(step string, err error) (Pipeline, error) {
		p.Release()
		return nil, fmt.Errorf("create pipeline %s: %s: %w", kernel.Name, step, err)
	}

	p.module, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: kernel.Name + "_shader",
		SPIRV: spirv,
	})
	if err != nil {
		return fail("shader module", err)
	}

	entries := make([]wgpu.BindGroupLayoutEntry, len(kernel.Layout))
	for i, bt := range kernel.Layout {
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: bt.bufferBindingType()},
		}
	}
	p.bindLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   kernel.Name + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fail("bind group layout", err)
	}

	p.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            kernel.Name + "_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fail("pipeline layout", err)
	}

	p.pipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      kernel.Name + "_pipeline",
		Layout:     p.pipelineLayout,
		Module:     p.module,
		EntryPoint: kernel.EntryPoint,
	})
	if err != nil {
		return fail("compute pipeline", err)
	}
	return p, nil
}

// Dispatch records one compute pass, submits it and waits for the queue to
// drain
func (d *WGPUDevice) Dispatch(pipeline Pipeline, bindings []Binding, groupsX, groupsY uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	p, ok := pipeline.(*wgpuPipeline)
	if !ok || p == nil {
		return fmt.Errorf("pipeline %T does not belong to a wgpu device", pipeline)
	}
	if groupsX == 0 || groupsY == 0 {
		return nil
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for _, b := range bindings {
		buf, err := wgpuBufferOf(b.Buffer)
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", p.kernel.Name, err)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: b.Index,
			Buffer:  buf,
			Offset:  0,
			Size:    buf.Size(),
		})
	}
	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.kernel.Name + "_bind_group",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("dispatch %s: bind group: %w", p.kernel.Name, err)
	}
	defer bindGroup.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("dispatch %s: command encoder: %w", p.kernel.Name, err)
	}
	pass, err := encoder.BeginComputePass(nil)
	if err != nil {
		return fmt.Errorf("dispatch %s: begin pass: %w", p.kernel.Name, err)
	}
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(groupsX, groupsY, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("dispatch %s: end pass: %w", p.kernel.Name, err)
	}

	return d.submit(encoder, "dispatch "+p.kernel.Name)
}

func (d *WGPUDevice) submit(encoder *wgpu.CommandEncoder, what string) error {
	cmd, err := encoder.Finish()
	if err != nil {
		return fmt.Errorf("%s: finish: %w", what, err)
	}
	if _, err := d.queue.Submit(cmd); err != nil {
		return fmt.Errorf("%s: submit: %w", what, err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("%s: wait: %w", what, err)
	}
	return nil
}

// CopyBuffer copies the first size bytes of src into dst on the queue
func (d *WGPUDevice) CopyBuffer(src, dst Buffer, size uint64) error {
	if err := d.check(); err != nil {
		return err
	}
	s, err := wgpuBufferOf(src)
	if err != nil {
		return err
	}
	t, err := wgpuBufferOf(dst)
	if err != nil {
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("copy %s -> %s: command encoder: %w", s.Label(), t.Label(), err)
	}
	encoder.CopyBufferToBuffer(s, 0, t, 0, size)
	return d.submit(encoder, fmt.Sprintf("copy %s -> %s", s.Label(), t.Label()))
}

// ReadBuffer maps a MapRead buffer and copies out the first size bytes
func (d *WGPUDevice) ReadBuffer(ctx context.Context, buf Buffer, size uint64) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	b, err := wgpuBufferOf(buf)
	if err != nil {
		return nil, err
	}
	if err := b.Map(ctx, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("read buffer %s: map: %w", b.Label(), err)
	}
	mapped, err := b.MappedRange(0, size)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("read buffer %s: mapped range: %w", b.Label(), err), b.Unmap())
	}
	out := make([]byte, size)
	copy(out, mapped.Bytes())
	mapped.Release()
	if err := b.Unmap(); err != nil {
		return nil, fmt.Errorf("read buffer %s: unmap: %w", b.Label(), err)
	}
	return out, nil
}

// WaitIdle blocks until all submitted work has completed
func (d *WGPUDevice) WaitIdle() error {
	if err := d.check(); err != nil {
		return err
	}
	return d.device.WaitIdle()
}

// Release frees the device, adapter and instance. It is safe to call twice.
func (d *WGPUDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}
