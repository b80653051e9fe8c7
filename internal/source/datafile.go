package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zombor/invoice-checker/internal/lottery"
)

// DataFile is the published winning-number list on local disk, the file CloudClient downloads
type DataFile struct {
	path string
}

// NewDataFile creates a DataFile, creating its parent directory if needed
func NewDataFile(path string) (*DataFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &DataFile{path: path}, nil
}

// Load reads the list; a missing file is an empty list
func (d *DataFile) Load() ([]lottery.WinningNumberSet, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []lottery.WinningNumberSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}

	var sets []lottery.WinningNumberSet
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("decoding data file: %w", err)
	}
	return sets, nil
}

// Save replaces the file with sets
func (d *DataFile) Save(sets []lottery.WinningNumberSet) error {
	data, err := json.MarshalIndent(sets, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding data file: %w", err)
	}
	// Write then rename so readers never see a partial file
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing data file: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("replacing data file: %w", err)
	}
	return nil
}

// Publish upserts set by period and saves the result
func (d *DataFile) Publish(set lottery.WinningNumberSet) ([]lottery.WinningNumberSet, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", set.Period, err)
	}
	current, err := d.Load()
	if err != nil {
		return nil, err
	}
	updated := lottery.UpsertByPeriod(current, set)
	if err := d.Save(updated); err != nil {
		return nil, err
	}
	return updated, nil
}
