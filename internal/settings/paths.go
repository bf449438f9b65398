package settings

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/edkit-dev/edkit/internal/platform"
)

// UserDir is the editor's per-user configuration directory holding
// settings.json, keybindings.json and snippets/.
func UserDir(info *platform.Info, variant platform.Variant) (string, error) {
	var root string
	switch info.OS {
	case "windows":
		root = os.Getenv("APPDATA")
		if root == "" {
			return "", errors.New("APPDATA is not set")
		}
	default:
		// ~/.config on Linux, ~/Library/Application Support on macOS.
		root = xdg.ConfigHome
	}
	return filepath.Join(root, variant.ConfigDirName(), "User"), nil
}

// UserSettingsPath is the editor's settings.json for variant.
func UserSettingsPath(info *platform.Info, variant platform.Variant) (string, error) {
	dir, err := UserDir(info, variant)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}
