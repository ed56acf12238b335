package gpu

import (
	"errors"
	"fmt"
	"slices"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/gogpu/gpucontext"
)

// Device names accepted by OpenDevice
const (
	DeviceAuto = "auto"
	DeviceWGPU = "wgpu"
	DeviceHost = "host"
)

// opened is what a registry factory produces: a device or the reason it
// could not be acquired
type opened struct {
	device Device
	err    error
}

// devicePriority is the order "auto" tries devices in
var devicePriority = []string{DeviceWGPU, DeviceHost}

func newDeviceRegistry(hostWorkers int) *gpucontext.Registry[opened] {
	r := gpucontext.NewRegistry[opened](gpucontext.WithPriority(devicePriority...))
	r.Register(DeviceWGPU, func() opened {
		d, err := OpenWGPU()
		if err != nil {
			return opened{err: err}
		}
		return opened{device: d}
	})
	r.Register(DeviceHost, func() opened {
		return opened{device: NewHostDevice(hostWorkers)}
	})
	return r
}

// Devices returns the registered device names in priority order
func Devices() []string {
	names := newDeviceRegistry(0).Available()
	slices.SortFunc(names, func(a, b string) int {
		return priorityRank(a) - priorityRank(b)
	})
	return names
}

func priorityRank(name string) int {
	if i := slices.Index(devicePriority, name); i >= 0 {
		return i
	}
	return len(devicePriority)
}

// OpenDevice opens the named device. "auto" (or "") tries each registered
// device in priority order and falls back to the next one when a device
// cannot be acquired. hostWorkers sizes the host device, 0 uses every CPU.
func OpenDevice(name string, hostWorkers int) (Device, error) {
	return openFrom(newDeviceRegistry(hostWorkers), name)
}

func openFrom(r *gpucontext.Registry[opened], name string) (Device, error) {
	log := core.Logger()
	if name != "" && name != DeviceAuto {
		if !r.Has(name) {
			return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDevice, name, r.Available())
		}
		o := r.Get(name)
		if o.err != nil {
			return nil, fmt.Errorf("open device %s: %w", name, o.err)
		}
		log.Info("compute device selected", "device", name, "adapter", o.device.Info().Name,
			"type", o.device.Info().Type.String())
		return o.device, nil
	}

	var errs []error
	for _, candidate := range devicePriority {
		if !r.Has(candidate) {
			continue
		}
		o := r.Get(candidate)
		if o.err != nil {
			log.Warn("compute device unavailable, trying next", "device", candidate, "err", o.err)
			errs = append(errs, fmt.Errorf("%s: %w", candidate, o.err))
			continue
		}
		log.Info("compute device selected", "device", candidate, "adapter", o.device.Info().Name,
			"type", o.device.Info().Type.String())
		return o.device, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no device registered", ErrDeviceUnavailable)
	}
	return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, errors.Join(errs...))
}
