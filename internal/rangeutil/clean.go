package rangeutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Clean removes any stray "<output>.part*" files left behind by a
// failed or interrupted transfer targeting outputPath.
func Clean(outputPath string) (int, error) {
	matches, err := filepath.Glob(outputPath + ".part*")
	if err != nil {
		return 0, fmt.Errorf("glob part files: %w", err)
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return removed, fmt.Errorf("remove %s: %w", m, err)
		}
		removed++
	}
	return removed, nil
}
