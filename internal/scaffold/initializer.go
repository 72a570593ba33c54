package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/halo/internal/config"
	"github.com/dyluth/halo/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes a starter halo.yml into dir.
// If force is true, an existing halo.yml is replaced.
func Initialize(dir string, force bool) error {
	if force {
		if err := handleForce(dir); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := writeFiles(dir, files); err != nil {
		return err
	}

	return validateCreatedFiles(dir)
}

// handleForce removes an existing halo.yml if --force was specified
func handleForce(dir string) error {
	path := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		printer.Warning("Removing existing %s...\n", config.DefaultConfigFile)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", config.DefaultConfigFile, err)
		}
	}
	return nil
}

// getTemplateFiles reads all template files
func getTemplateFiles() ([]FileInfo, error) {
	haloYml, err := templatesFS.ReadFile("templates/halo.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read halo.yml template: %w", err)
	}
	return []FileInfo{{
		Path:        config.DefaultConfigFile,
		Content:     haloYml,
		Permissions: 0644,
	}}, nil
}

// writeFiles writes files relative to dir, refusing to overwrite.
func writeFiles(dir string, files []FileInfo) error {
	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, file.Permissions)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		_, werr := f.Write(file.Content)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, werr)
		}
		if cerr != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, cerr)
		}
	}
	return nil
}

// validateCreatedFiles checks the written halo.yml loads as a launcher config
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, config.DefaultConfigFile)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultConfigFile, err)
	}
	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	printer.Success("Created %s\n", config.DefaultConfigFile)
	printer.Println("\nNext steps:")
	printer.Println("  1. Start Redis, or point redis.url at an existing server")
	printer.Println("  2. Adjust processes and logging in halo.yml")
	printer.Println("  3. Run 'halo launch -- <input_file> <output_folder> <width> <height>'")
}
