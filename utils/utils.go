package utils

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// RoundToXDp rounds f to dp decimal places.
func RoundToXDp(f float64, dp uint8) float64 {
	e := math.Pow(10, float64(dp))
	return math.Round(f*e) / e
}

// NextAvailableFilename returns dir/name+ext, or the first dir/name_N+ext that doesn't exist yet.
func NextAvailableFilename(dir, name, ext string) string {
	path := filepath.Join(dir, name+ext)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	for i := 1; ; i++ {
		newName := fmt.Sprintf("%s_%d%s", name, i, ext)
		newPath := filepath.Join(dir, newName)
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}
}

// CreateNextAvailable creates dir if needed and opens the next free dir/name_N+ext for appending.
func CreateNextAvailable(dir, name, ext string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	path := NextAvailableFilename(dir, name, ext)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}
