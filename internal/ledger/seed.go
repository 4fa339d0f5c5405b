package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"finboard/internal/core"
)

// LoadSeedFile reads a JSON array of records. A missing file yields the
// built-in sample months.
func LoadSeedFile(path string) ([]core.MonthlyRecord, error) {
	if path == "" {
		return core.SampleRecords(), nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.SampleRecords(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records []core.MonthlyRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return records, nil
}
