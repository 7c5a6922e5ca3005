package capture

import (
	"encoding/json"
	"os"

	"github.com/posecast/posecast/internal/monitoring"
)

// LoadMetadataFile reads a JSON object file into a metadata map. The load is
// best-effort: a missing or unparseable file logs a warning and yields an
// empty map rather than failing, so an absent calibration never blocks
// startup.
func LoadMetadataFile(path string) map[string]any {
	if path == "" {
		return map[string]any{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		monitoring.Logf("metadata file %s could not be read; ignoring: %v", path, err)
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		monitoring.Logf("failed to parse metadata JSON from %s; ignoring: %v", path, err)
		return map[string]any{}
	}
	return out
}
