// Package config implements the on-disk YAML configuration lifecycle:
// load-validate-or-replace-with-defaults, with broken files renamed aside
// rather than overwritten, using gopkg.in/yaml.v3 and
// github.com/olanti-p/youtube-dl-project/internal/fsnode's
// collision-avoidance for the renamed file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olanti-p/youtube-dl-project/internal/fsnode"

	"gopkg.in/yaml.v3"
)

// Validatable is implemented by every config document loaded through Load.
type Validatable interface {
	CheckValidity() error
}

// Load reads path, parses it as YAML into a T, and validates it. If the
// file is absent, unparseable, or fails validation, it is replaced with
// def: an unparseable file is renamed aside (never overwritten) before
// the default is written in its place, matching
// ConfigTrait::neutralize_broken_config_file.
func Load[T Validatable](path string, def T) (T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return def, fmt.Errorf("reading config %s: %w", path, err)
		}
		return def, save(path, def)
	}

	var parsed T
	if yerr := yaml.Unmarshal(raw, &parsed); yerr != nil {
		if rerr := neutralizeBrokenFile(path); rerr != nil {
			return def, fmt.Errorf("neutralizing broken config %s: %w", path, rerr)
		}
		return def, save(path, def)
	}

	if verr := parsed.CheckValidity(); verr != nil {
		return def, save(path, def)
	}
	return parsed, nil
}

// Save writes v to path as YAML, creating parent directories as
// needed. Used directly by callers that already hold a validated
// config and just need to persist it (e.g. a hot-reload request),
// rather than going through the full Load lifecycle.
func Save[T Validatable](path string, v T) error {
	return save(path, v)
}

func save[T Validatable](path string, v T) error {
	if err := fsnode.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// neutralizeBrokenFile renames an unparseable config file to
// "<name>_old", picking a collision-free variant rather than clobbering
// a previous rename.
func neutralizeBrokenFile(path string) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path) + "_old"
	ext := ""
	if dot := strings.LastIndex(base, "."); dot > 0 {
		ext = base[dot+1:]
		base = base[:dot]
	}
	renamed, err := fsnode.PickFreeName(dir, base, ext)
	if err != nil {
		return err
	}
	return os.Rename(path, renamed)
}
