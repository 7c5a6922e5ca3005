// Package skeleton defines the body-pose frame model shared by providers,
// the capture loop and the transports, together with its JSON wire encoding.
package skeleton

import (
	"encoding/json"
	"sort"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Joint is a single named joint sample.
type Joint struct {
	Name string
	// Position is the joint position in the provider's coordinate space.
	Position r3.Vec
	// Rotation is the joint orientation. Nil means the provider did not
	// compute one; the wire encoding carries null in that case.
	Rotation *quat.Number
	// Confidence is the provider's detection confidence in [0,1].
	Confidence float64
}

// Frame is one timestamped set of named joints plus auxiliary metadata.
// Instances are created per capture cycle by a provider and consumed once by
// the loop; they are not retained or shared after transmission.
type Frame struct {
	// Joints maps joint name to sample. Names are unique by construction.
	Joints map[string]Joint
	// TimestampMS is the capture time in integer milliseconds. Providers
	// guarantee it is monotonically non-decreasing across their frames.
	TimestampMS int64
	// Meta is an open string-keyed map of auxiliary values (calibration,
	// frame dimensions, seating report and so on).
	Meta map[string]any
}

// NewFrame returns an empty frame at the given timestamp.
func NewFrame(timestampMS int64) *Frame {
	return &Frame{
		Joints:      make(map[string]Joint),
		TimestampMS: timestampMS,
		Meta:        make(map[string]any),
	}
}

// SetJoint adds or replaces a joint by name.
func (f *Frame) SetJoint(j Joint) {
	if f.Joints == nil {
		f.Joints = make(map[string]Joint)
	}
	f.Joints[j.Name] = j
}

// wire types mirror the fixed frame layout consumed by game engines:
// {"timestamp", "joints":[...], "meta":{...}}. Joints are emitted sorted by
// name so repeated encodings of the same frame are byte-identical.

type wireVec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type wireQuat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type wireJoint struct {
	Name       string    `json:"name"`
	Position   wireVec   `json:"position"`
	Rotation   *wireQuat `json:"rotation"`
	Confidence float64   `json:"confidence"`
}

type wireFrame struct {
	Timestamp int64          `json:"timestamp"`
	Joints    []wireJoint    `json:"joints"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// MarshalJSON encodes the frame in the wire layout. The meta object is
// omitted entirely when the frame carries no metadata.
func (f *Frame) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(f.Joints))
	for name := range f.Joints {
		names = append(names, name)
	}
	sort.Strings(names)

	joints := make([]wireJoint, 0, len(names))
	for _, name := range names {
		j := f.Joints[name]
		wj := wireJoint{
			Name:       j.Name,
			Position:   wireVec{X: j.Position.X, Y: j.Position.Y, Z: j.Position.Z},
			Confidence: j.Confidence,
		}
		if j.Rotation != nil {
			wj.Rotation = &wireQuat{
				X: j.Rotation.Imag,
				Y: j.Rotation.Jmag,
				Z: j.Rotation.Kmag,
				W: j.Rotation.Real,
			}
		}
		joints = append(joints, wj)
	}

	wf := wireFrame{Timestamp: f.TimestampMS, Joints: joints}
	if len(f.Meta) > 0 {
		wf.Meta = f.Meta
	}
	return json.Marshal(wf)
}

// Encode serializes the frame to its wire JSON form.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// UnmarshalJSON decodes the wire layout back into a frame. Duplicate joint
// names in the input resolve to the last entry.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return err
	}
	f.TimestampMS = wf.Timestamp
	f.Meta = wf.Meta
	f.Joints = make(map[string]Joint, len(wf.Joints))
	for _, wj := range wf.Joints {
		j := Joint{
			Name: wj.Name,
			Position: r3.Vec{
				X: wj.Position.X,
				Y: wj.Position.Y,
				Z: wj.Position.Z,
			},
			Confidence: wj.Confidence,
		}
		if wj.Rotation != nil {
			j.Rotation = &quat.Number{
				Real: wj.Rotation.W,
				Imag: wj.Rotation.X,
				Jmag: wj.Rotation.Y,
				Kmag: wj.Rotation.Z,
			}
		}
		f.Joints[j.Name] = j
	}
	return nil
}

// Decode parses wire JSON into a new frame.
func Decode(data []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, err
	}
	return f, nil
}

// FloatField extracts a float64 from a nested metadata object, e.g.
// FloatField(meta, "root_center_pixel", "x"). JSON decoding produces
// float64 for all numbers; native producers may store ints.
func FloatField(meta map[string]any, object, field string) (float64, bool) {
	raw, ok := meta[object]
	if !ok {
		return 0, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
