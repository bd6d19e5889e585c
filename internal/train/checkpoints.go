package train

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LatestCheckpoint returns the newest *.model file under modelsDir by
// modification time.
func LatestCheckpoint(modelsDir string) (string, error) {
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", modelsDir, err)
	}
	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".model") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = e.Name()
			newestMod = mod
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no checkpoints in %s, train a model first", modelsDir)
	}
	return filepath.Join(modelsDir, newest), nil
}
