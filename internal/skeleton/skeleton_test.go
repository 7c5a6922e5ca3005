package skeleton

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestEncodeDeterministicJointOrder(t *testing.T) {
	frame := NewFrame(1234)
	frame.SetJoint(Joint{Name: "hip", Position: r3.Vec{X: 0.5, Y: 1, Z: 2}, Confidence: 0.9})
	frame.SetJoint(Joint{Name: "head", Position: r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}, Confidence: 1})

	want := `{"timestamp":1234,"joints":[` +
		`{"name":"head","position":{"x":0.1,"y":0.2,"z":0.3},"rotation":null,"confidence":1},` +
		`{"name":"hip","position":{"x":0.5,"y":1,"z":2},"rotation":null,"confidence":0.9}]}`

	for i := 0; i < 3; i++ {
		got, err := frame.Encode()
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		if string(got) != want {
			t.Errorf("Encode() = %s, want %s", got, want)
		}
	}
}

func TestEncodeOmitsEmptyMeta(t *testing.T) {
	frame := NewFrame(1)
	data, err := frame.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["meta"]; ok {
		t.Errorf("meta key present for empty metadata: %s", data)
	}

	frame.Meta["calibration_id"] = "cal-7"
	data, err = frame.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["meta"]; !ok {
		t.Errorf("meta key missing: %s", data)
	}
}

func TestEncodeRotation(t *testing.T) {
	rot := quat.Number{Real: 1, Imag: 0.1, Jmag: 0.2, Kmag: 0.3}
	frame := NewFrame(5)
	frame.SetJoint(Joint{Name: "wrist", Rotation: &rot, Confidence: 0.5})

	data, err := frame.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	got := decoded.Joints["wrist"].Rotation
	if got == nil {
		t.Fatal("rotation lost in round trip")
	}
	if *got != rot {
		t.Errorf("rotation = %+v, want %+v", *got, rot)
	}
}

func TestRoundTrip(t *testing.T) {
	frame := NewFrame(99)
	frame.SetJoint(Joint{Name: "knee", Position: r3.Vec{X: 1, Y: 2, Z: 3}, Confidence: 0.75})
	frame.Meta["frame_dimensions"] = map[string]any{"width": 1920.0, "height": 1080.0}

	data, err := frame.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if diff := cmp.Diff(frame.Joints, decoded.Joints); diff != "" {
		t.Errorf("joints differ after round trip (-want +got):\n%s", diff)
	}
	if decoded.TimestampMS != 99 {
		t.Errorf("timestamp = %d, want 99", decoded.TimestampMS)
	}
	if _, ok := decoded.Meta["frame_dimensions"]; !ok {
		t.Error("frame_dimensions metadata lost")
	}
}

func TestFloatField(t *testing.T) {
	meta := map[string]any{
		"root_center_pixel": map[string]any{"x": 640.0, "y": 360},
	}
	if v, ok := FloatField(meta, "root_center_pixel", "x"); !ok || v != 640 {
		t.Errorf("FloatField(x) = %v, %v; want 640, true", v, ok)
	}
	if v, ok := FloatField(meta, "root_center_pixel", "y"); !ok || v != 360 {
		t.Errorf("FloatField(y) = %v, %v; want 360, true", v, ok)
	}
	if _, ok := FloatField(meta, "root_center_pixel", "z"); ok {
		t.Error("FloatField reported a missing field as present")
	}
	if _, ok := FloatField(meta, "missing", "x"); ok {
		t.Error("FloatField reported a missing object as present")
	}
	if _, ok := FloatField(map[string]any{"o": "not a map"}, "o", "x"); ok {
		t.Error("FloatField accepted a non-object value")
	}
}
