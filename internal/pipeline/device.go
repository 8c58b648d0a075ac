package pipeline

import (
	"fmt"
	"strings"
)

// Device is the preferred compute device for a model
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceGPU  Device = "gpu"
	DeviceCPU  Device = "cpu"
)

// Precision is the floating point width the weights are loaded with
type Precision string

const (
	FP16 Precision = "fp16"
	FP32 Precision = "fp32"
)

// ParseDevice accepts auto, gpu (or cuda) and cpu. Empty means auto.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DeviceAuto, nil
	case "gpu", "cuda":
		return DeviceGPU, nil
	case "cpu":
		return DeviceCPU, nil
	default:
		return "", fmt.Errorf("unknown device %q (want auto, gpu or cpu)", s)
	}
}

// Resolve turns auto into a concrete device
func (d Device) Resolve(gpuAvailable bool) Device {
	if d != DeviceAuto {
		return d
	}
	if gpuAvailable {
		return DeviceGPU
	}
	return DeviceCPU
}

// Precision is fp16 on GPU and fp32 everywhere else
func (d Device) Precision() Precision {
	if d == DeviceGPU {
		return FP16
	}
	return FP32
}
