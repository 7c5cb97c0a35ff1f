package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/livetemplate/cssplay/internal/config"
	"github.com/livetemplate/cssplay/internal/playground"
)

// StarterSource is the source file written by init.
const StarterSource = "styles.cssx"

// InitCommand writes a cssplay.yaml and a starter source into a directory.
// Existing files are never overwritten.
func InitCommand(args []string) error {
	dir := "."
	switch len(args) {
	case 0:
	case 1:
		dir = args[0]
	default:
		return fmt.Errorf("usage: cssplay init [directory]")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, config.FileName)
	srcPath := filepath.Join(dir, StarterSource)
	for _, p := range []string{cfgPath, srcPath} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists", p)
		}
	}

	if err := os.WriteFile(srcPath, []byte(playground.DefaultSource), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", srcPath, err)
	}

	cfg := config.DefaultConfig()
	cfg.Playground.SourceFile = StarterSource
	cfg.Playground.Watch = true
	if err := cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}

	fmt.Printf("✅ Created %s and %s\n", cfgPath, srcPath)
	fmt.Printf("\nNext: cd %s && cssplay serve\n", dir)
	return nil
}
