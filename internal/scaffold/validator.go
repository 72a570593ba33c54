package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/halo/internal/config"
)

// CheckExisting returns an error if dir already holds a halo.yml
func CheckExisting(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, config.DefaultConfigFile)); err == nil {
		return fmt.Errorf("already initialized\n\nFound existing: %s\n\nUse 'halo init --force' to overwrite it", config.DefaultConfigFile)
	}
	return nil
}
