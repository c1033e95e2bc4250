package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// OverrideCwd is set from --cwd.
var OverrideCwd string

// GetEffectiveCWD is the directory chatwidget config, .env and debug.log are
// resolved against: --cwd (with a leading ~ expanded) made absolute, or else
// the process working directory.
func GetEffectiveCWD() string {
	dir := strings.TrimSpace(OverrideCwd)
	if dir == "" {
		if wd, err := os.Getwd(); err == nil && wd != "" {
			return wd
		}
		return "."
	}

	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
