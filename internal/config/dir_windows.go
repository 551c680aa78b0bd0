//go:build windows

package config

import (
	"errors"
	"os"
	"path/filepath"
)

// Dir resolves the mpv script-opts directory: a portable_config next to the
// executable wins, then %MPV_HOME%, then %APPDATA%\mpv.
func Dir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	portable := filepath.Join(filepath.Dir(exe), "portable_config")
	if _, err := os.Stat(portable); err == nil {
		return filepath.Join(portable, "script-opts"), nil
	}
	if v := os.Getenv("MPV_HOME"); v != "" {
		return filepath.Join(v, "script-opts"), nil
	}
	appdata := os.Getenv("APPDATA")
	if appdata == "" {
		return "", errors.New("APPDATA is not set")
	}
	return filepath.Join(appdata, "mpv", "script-opts"), nil
}

func defaultSocket() string {
	return `\\.\pipe\mpvsocket`
}
