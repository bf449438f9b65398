package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/edkit-dev/edkit/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func copyFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "User", "settings.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestDefaultProfile(t *testing.T) {
	p := Default()
	assert.Equal(t, DefaultProfileName, p.Name)
	assert.Equal(t, "off", p.Overrides["telemetry.telemetryLevel"])
	assert.Equal(t, false, p.Overrides["extensions.autoUpdate"])

	watcher, ok := p.Overrides["files.watcherExclude"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, watcher["**/node_modules/**"])
}

func TestParseProfile_Invalid(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "invalid-profile.yaml"))
	require.NoError(t, err)

	_, err = ParseProfile(data, "invalid-profile.yaml")
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.NotEmpty(t, ve.Issues)
	assert.Contains(t, err.Error(), "invalid-profile.yaml")
}

func TestParseProfile_MissingOverrides(t *testing.T) {
	_, err := ParseProfile([]byte("name: bare\n"), "bare")
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestParseProfile_BadYAML(t *testing.T) {
	_, err := ParseProfile([]byte("name: [unterminated"), "broken")
	require.Error(t, err)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileName, p.Name)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\noverrides:\n  editor.tabSize: 2\nremove: [old.setting]\n"), 0644))
	p, err = LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)
	assert.Equal(t, float64(2), p.Overrides["editor.tabSize"])
	assert.Equal(t, []string{"old.setting"}, p.Remove)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRead_AcceptsCommentsAndTrailingCommas(t *testing.T) {
	values, err := Read(copyFixture(t, "settings.jsonc"))
	require.NoError(t, err)
	assert.Equal(t, float64(14), values["editor.fontSize"])
	assert.Len(t, values, 5)
}

func TestRead_MissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	values, err := Read(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Empty(t, values)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	values, err = Read(empty)
	require.NoError(t, err)
	assert.Empty(t, values)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"a": `), 0644))
	_, err = Read(broken)
	assert.Error(t, err)
}

func testProfile() *Profile {
	return &Profile{
		Name: "test",
		Overrides: map[string]any{
			"telemetry.telemetryLevel": "off",
			"update.mode":              "none",
			"editor.minimap.enabled":   false,
		},
		Remove: []string{"old.setting", "never.there"},
	}
}

func TestApply(t *testing.T) {
	current := map[string]any{
		"telemetry.telemetryLevel": "all",
		"update.mode":              "none",
		"editor.fontSize":          float64(14),
		"old.setting":              true,
	}
	diff := Apply(current, testProfile())

	assert.Equal(t, []string{"editor.minimap.enabled"}, diff.Added)
	assert.Equal(t, []string{"telemetry.telemetryLevel"}, diff.Changed)
	assert.Equal(t, []string{"old.setting"}, diff.Removed)
	assert.Equal(t, float64(14), current["editor.fontSize"], "unrelated keys are preserved")
	assert.NotContains(t, current, "old.setting")
}

func TestMerge(t *testing.T) {
	path := copyFixture(t, "settings.jsonc")

	diff, err := Merge(path, testProfile(), false)
	require.NoError(t, err)
	assert.False(t, diff.Empty())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, json.Unmarshal(data, &written), "output is plain JSON")
	assert.Equal(t, "off", written["telemetry.telemetryLevel"])
	assert.Equal(t, "Default Dark+", written["workbench.colorTheme"])
	assert.NotContains(t, written, "old.setting")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions are kept")

	again, err := Merge(path, testProfile(), false)
	require.NoError(t, err)
	assert.True(t, again.Empty(), "merge is idempotent")
}

func TestMerge_DryRunWritesNothing(t *testing.T) {
	path := copyFixture(t, "settings.jsonc")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	diff, err := Merge(path, testProfile(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"telemetry.telemetryLevel"}, diff.Changed)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMerge_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Code", "User", "settings.json")
	diff, err := Merge(path, Default(), false)
	require.NoError(t, err)
	assert.Empty(t, diff.Changed)
	assert.Len(t, diff.Added, len(Default().Overrides))

	values, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Overrides, values)
}

func TestUserSettingsPath(t *testing.T) {
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", "/home/dev/.config")
	xdg.Reload()

	linux := &platform.Info{OS: "linux"}
	path, err := UserSettingsPath(linux, platform.VariantInsiders)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg.ConfigHome, "Code - Insiders", "User", "settings.json"), path)

	t.Setenv("APPDATA", `C:\Users\dev\AppData\Roaming`)
	path, err = UserSettingsPath(&platform.Info{OS: "windows"}, platform.VariantStable)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(`C:\Users\dev\AppData\Roaming`, "Code", "User", "settings.json"), path)

	t.Setenv("APPDATA", "")
	_, err = UserSettingsPath(&platform.Info{OS: "windows"}, platform.VariantStable)
	assert.Error(t, err)
}
