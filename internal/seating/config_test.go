package seating

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const validConfig = `{
  "seats": [
    {"id": "s1", "bounds": {"xMin": 0.0, "xMax": 0.5, "yMin": 0.0, "yMax": 0.5}},
    {"id": "s2", "bounds": {"xMin": 0.5, "xMax": 1.0, "yMin": 0.0, "yMax": 0.5}}
  ]
}`

func TestParseValidConfig(t *testing.T) {
	layout, err := Parse([]byte(validConfig))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if layout.Len() != 2 {
		t.Errorf("Len() = %d, want 2", layout.Len())
	}
	regions := layout.Regions()
	if regions[0].SeatID != "s1" || regions[1].SeatID != "s2" {
		t.Errorf("seat order not preserved: %v", regions)
	}
}

func TestParseRejectsMalformedConfig(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"not json", `{"seats": [`},
		{"missing seats", `{}`},
		{"empty seats", `{"seats": []}`},
		{"seat missing id", `{"seats":[{"bounds":{"xMin":0,"xMax":1,"yMin":0,"yMax":1}}]}`},
		{"seat missing bounds", `{"seats":[{"id":"s1"}]}`},
		{"inverted x bounds", `{"seats":[{"id":"s1","bounds":{"xMin":0.6,"xMax":0.4,"yMin":0,"yMax":1}}]}`},
		{"zero-width bounds", `{"seats":[{"id":"s1","bounds":{"xMin":0.5,"xMax":0.5,"yMin":0,"yMax":1}}]}`},
		{"inverted y bounds", `{"seats":[{"id":"s1","bounds":{"xMin":0,"xMax":1,"yMin":0.9,"yMax":0.1}}]}`},
		{"duplicate ids", `{"seats":[{"id":"s1","bounds":{"xMin":0,"xMax":0.5,"yMin":0,"yMax":1}},{"id":"s1","bounds":{"xMin":0.5,"xMax":1,"yMin":0,"yMax":1}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.json))
			if !errors.Is(err, ErrConfig) {
				t.Errorf("Parse() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "seats.json")
	if err := os.WriteFile(path, []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	layout, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if layout.Len() != 2 {
		t.Errorf("Len() = %d, want 2", layout.Len())
	}

	if _, err := LoadFile(filepath.Join(tmpDir, "missing.json")); !errors.Is(err, ErrConfig) {
		t.Errorf("missing file error = %v, want ErrConfig", err)
	}

	badExt := filepath.Join(tmpDir, "seats.yaml")
	if err := os.WriteFile(badExt, []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(badExt); !errors.Is(err, ErrConfig) {
		t.Errorf("non-json extension error = %v, want ErrConfig", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	original, err := Parse([]byte(validConfig))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	reloaded, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error: %v", err)
	}
	if diff := cmp.Diff(original.Regions(), reloaded.Regions()); diff != "" {
		t.Errorf("layout changed across round trip (-want +got):\n%s", diff)
	}
}
