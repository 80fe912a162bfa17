package monitor

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProjectConfigFileName is the optional project-local override file consulted
// at a watch root, mirroring the teacher's UserConfigFileName /
// config.toml convention (internal/session/userconfig.go) but scoped to a
// single watched directory instead of the user's home.
const ProjectConfigFileName = ".fsmonitor.toml"

// projectConfigFile is the on-disk shape of a .fsmonitor.toml override. Only
// fields meaningful to override on a per-project basis are exposed; the rest
// of Config (Debug, DebugFile, Recursive) stays process-wide.
type projectConfigFile struct {
	DebounceMs          int      `toml:"debounce_ms"`
	MaxFileSize         int64    `toml:"max_file_size"`
	MaxPrepopulateFiles int      `toml:"max_prepopulate_files"`
	MaxDepth            int      `toml:"max_depth"`
	MaxCacheBytes       int64    `toml:"max_cache_bytes"`
	IgnorePatterns      []string `toml:"ignore_patterns"`
	RespectGitignore    *bool    `toml:"respect_gitignore"`
	NeverIgnore         []string `toml:"never_ignore"`
}

// LoadProjectConfig reads root/.fsmonitor.toml, if present, and returns base
// with every field the file sets overridden. A missing file is not an error;
// base is returned unchanged. A malformed or unreadable file is returned as
// an error, together with base unchanged.
func LoadProjectConfig(root string, base Config) (Config, error) {
	path := filepath.Join(root, ProjectConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, err
	}

	var file projectConfigFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return base, err
	}

	merged := base
	if file.DebounceMs > 0 {
		merged.DebounceMs = file.DebounceMs
	}
	if file.MaxFileSize > 0 {
		merged.MaxFileSize = file.MaxFileSize
	}
	if file.MaxPrepopulateFiles > 0 {
		merged.MaxPrepopulateFiles = file.MaxPrepopulateFiles
	}
	if file.MaxDepth > 0 {
		merged.MaxDepth = file.MaxDepth
	}
	if file.MaxCacheBytes > 0 {
		merged.MaxCacheBytes = file.MaxCacheBytes
	}
	if len(file.IgnorePatterns) > 0 {
		merged.IgnorePatterns = append(append([]string{}, merged.IgnorePatterns...), file.IgnorePatterns...)
	}
	if file.RespectGitignore != nil {
		merged.RespectGitignore = *file.RespectGitignore
	}
	if len(file.NeverIgnore) > 0 {
		merged.NeverIgnore = append(append([]string{}, merged.NeverIgnore...), file.NeverIgnore...)
	}

	return merged, nil
}
