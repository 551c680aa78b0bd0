//go:build !windows

package config

import (
	"os"
	"path/filepath"
)

// Dir resolves the mpv script-opts directory the same way mpv does on Unix.
func Dir() (string, error) {
	return dirFromEnv(os.Getenv, os.UserHomeDir)
}

func dirFromEnv(getenv func(string) string, home func() (string, error)) (string, error) {
	if v := getenv("MPV_HOME"); v != "" {
		return filepath.Join(v, "script-opts"), nil
	}
	if v := getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "mpv", "script-opts"), nil
	}
	h, err := home()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".config", "mpv", "script-opts"), nil
}

func defaultSocket() string {
	return "/tmp/mpvsocket"
}
