// Package statepaths resolves the on-disk layout of the wingmate state
// directory from viper configuration.
package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultStateDirName = ".wingmate"
	PersonaFilename     = "persona.yaml"
	UsersFilename       = "users.json"
	LockDirName         = ".fslocks"
)

func StateDir() string {
	return resolveStateDir(viper.GetString("file_state_dir"))
}

func UsersPath() string {
	return filepath.Join(StateDir(), UsersFilename)
}

func PersonaPath() string {
	return filepath.Join(StateDir(), PersonaFilename)
}

func LockDir() string {
	return filepath.Join(StateDir(), LockDirName)
}

func BackupDir() string {
	return filepath.Join(StateDir(), "backups")
}

func resolveStateDir(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured != "" {
		return ExpandHomePath(configured)
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return defaultStateDirName
	}
	return filepath.Join(home, defaultStateDirName)
}

func ExpandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && strings.TrimSpace(home) != "" {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Clean(path)
}
