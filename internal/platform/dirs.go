package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "voxlate"

// Dirs holds the per-user locations voxlate reads from and writes to.
type Dirs struct {
	Data   string
	Config string
	Cache  string
}

// DirsFor computes the directories for goos. getenv supplies the XDG
// overrides on Linux.
func DirsFor(goos, homeDir string, getenv func(string) string) (Dirs, error) {
	if homeDir == "" {
		return Dirs{}, errors.New("home directory is empty")
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	switch goos {
	case "linux":
		return Dirs{
			Data:   xdgDir(getenv("XDG_DATA_HOME"), filepath.Join(homeDir, ".local", "share")),
			Config: xdgDir(getenv("XDG_CONFIG_HOME"), filepath.Join(homeDir, ".config")),
			Cache:  xdgDir(getenv("XDG_CACHE_HOME"), filepath.Join(homeDir, ".cache")),
		}, nil
	case "darwin":
		support := filepath.Join(homeDir, "Library", "Application Support", appName)
		return Dirs{
			Data:   support,
			Config: support,
			Cache:  filepath.Join(homeDir, "Library", "Caches", appName),
		}, nil
	default:
		return Dirs{}, fmt.Errorf("unsupported OS: %s", goos)
	}
}

func xdgDir(override, fallback string) string {
	if override != "" {
		return filepath.Join(override, appName)
	}
	return filepath.Join(fallback, appName)
}

func CurrentDirs() (Dirs, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("resolve user home: %w", err)
	}
	return DirsFor(runtime.GOOS, homeDir, os.Getenv)
}

func ResolveModelDir(override string) (string, error) {
	return resolve(override, func(d Dirs) string { return filepath.Join(d.Data, "models") })
}

// ResolveScratchDir is where oversized audio is split into segments.
func ResolveScratchDir(override string) (string, error) {
	return resolve(override, func(d Dirs) string { return filepath.Join(d.Cache, "scratch") })
}

func ResolveConfigFile(override string) (string, error) {
	return resolve(override, func(d Dirs) string { return filepath.Join(d.Config, "config.ini") })
}

func ResolveRecordingDir(override string) (string, error) {
	return resolve(override, func(d Dirs) string { return filepath.Join(d.Data, "recordings") })
}

func resolve(override string, pick func(Dirs) string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	dirs, err := CurrentDirs()
	if err != nil {
		return "", err
	}
	return pick(dirs), nil
}
