package pipeline

import "testing"

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"", DeviceAuto, false},
		{"auto", DeviceAuto, false},
		{"GPU", DeviceGPU, false},
		{"cuda", DeviceGPU, false},
		{"cpu", DeviceCPU, false},
		{"tpu", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDevice(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDevice(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDevice(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveAndPrecision(t *testing.T) {
	if got := DeviceAuto.Resolve(true); got != DeviceGPU {
		t.Errorf("auto with GPU resolved to %q", got)
	}
	if got := DeviceAuto.Resolve(false); got != DeviceCPU {
		t.Errorf("auto without GPU resolved to %q", got)
	}
	if got := DeviceCPU.Resolve(true); got != DeviceCPU {
		t.Errorf("explicit cpu resolved to %q", got)
	}
	if DeviceGPU.Precision() != FP16 {
		t.Error("Expected fp16 on gpu")
	}
	if DeviceCPU.Precision() != FP32 {
		t.Error("Expected fp32 on cpu")
	}
}
