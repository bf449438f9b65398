package preflight

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/edkit-dev/edkit/internal/artifact"
	"github.com/edkit-dev/edkit/internal/config"
	"github.com/edkit-dev/edkit/internal/executor"
	"github.com/edkit-dev/edkit/internal/platform"
	"github.com/edkit-dev/edkit/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, status int) (*session.Session, *executor.DryRunExecutor) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Length", "123456")
		w.Header().Set("Accept-Ranges", "bytes")
	}))
	t.Cleanup(srv.Close)

	exec := executor.NewDryRun()
	settings := config.Settings{
		CacheDir:          filepath.Join(t.TempDir(), "cache"),
		DownloadBaseURL:   srv.URL,
		MinFreeSpaceMB:    1024,
		MinInotifyWatches: 524288,
	}
	info := &platform.Info{OS: "linux", Arch: "amd64", Kind: artifact.KindRPM, Token: "linux-rpm-x64"}
	sess, err := session.New(settings, true,
		session.WithPlatform(info),
		session.WithExecutor(exec),
		session.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return sess, exec
}

func newTestChecker(t *testing.T, sess *session.Session, freeMB uint64, watches string) *Checker {
	t.Helper()
	c := NewChecker(sess)
	c.goos = "linux"
	c.settingsDir = filepath.Join(t.TempDir(), "Code", "User")
	c.inotifyPath = filepath.Join(t.TempDir(), "max_user_watches")
	require.NoError(t, os.WriteFile(c.inotifyPath, []byte(watches+"\n"), 0644))
	c.diskFree = func(string) (uint64, error) { return freeMB * 1024 * 1024, nil }
	return c
}

func TestRun_AllPass(t *testing.T) {
	sess, _ := newTestSession(t, http.StatusOK)
	c := newTestChecker(t, sess, 20480, "524288")

	var out bytes.Buffer
	report, err := c.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.False(t, report.Failed())

	names := make([]string, len(report.Results))
	for i, res := range report.Results {
		names[i] = res.Name
		assert.Equal(t, StatusOK, res.Status, res.Message)
	}
	assert.Equal(t, []string{CheckDiskSpace, CheckNetwork, CheckCacheDir, CheckSettingsDir, CheckInotify}, names)

	assert.Contains(t, out.String(), "[ OK ] disk space: 20,480 MB free")
	assert.Contains(t, out.String(), "(123,456 bytes)")
}

func TestRun_LowDiskFails(t *testing.T) {
	sess, _ := newTestSession(t, http.StatusOK)
	c := newTestChecker(t, sess, 100, "524288")

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.Failed())

	res, ok := report.Find(CheckDiskSpace)
	require.True(t, ok)
	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "need 1,024 MB")
}

func TestRun_UnknownDiskIsWarning(t *testing.T) {
	sess, _ := newTestSession(t, http.StatusOK)
	c := newTestChecker(t, sess, 0, "524288")
	c.diskFree = func(string) (uint64, error) { return 0, errors.New("statfs unsupported") }

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	res, _ := report.Find(CheckDiskSpace)
	assert.Equal(t, StatusWarn, res.Status)
	assert.False(t, report.Failed())
}

func TestRun_UnreachableMirrorFails(t *testing.T) {
	sess, _ := newTestSession(t, http.StatusNotFound)
	c := newTestChecker(t, sess, 20480, "524288")

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	res, _ := report.Find(CheckNetwork)
	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "404")
}

func TestRun_LowInotifyIsWarning(t *testing.T) {
	sess, _ := newTestSession(t, http.StatusOK)
	c := newTestChecker(t, sess, 20480, "8192")

	var out bytes.Buffer
	report, err := c.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.False(t, report.Failed())
	res, _ := report.Find(CheckInotify)
	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, out.String(), "[WARN] inotify watches: max_user_watches is 8192")
}

func TestRun_SkipsInotifyOffLinux(t *testing.T) {
	sess, _ := newTestSession(t, http.StatusOK)
	c := newTestChecker(t, sess, 20480, "1")
	c.goos = "darwin"

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	_, ok := report.Find(CheckInotify)
	assert.False(t, ok)
}

func TestRun_ReadOnlyCacheDirFails(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can write anywhere")
	}
	sess, _ := newTestSession(t, http.StatusOK)
	ro := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.MkdirAll(ro, 0555))
	sess.Settings.CacheDir = ro
	c := newTestChecker(t, sess, 20480, "524288")

	report, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	res, _ := report.Find(CheckCacheDir)
	assert.Equal(t, StatusFail, res.Status)
}

func TestStatusTag(t *testing.T) {
	assert.Equal(t, "[ OK ]", StatusOK.Tag())
	assert.Equal(t, "[WARN]", StatusWarn.Tag())
	assert.Equal(t, "[FAIL]", StatusFail.Tag())
}

func TestFixInotify(t *testing.T) {
	sess, exec := newTestSession(t, http.StatusOK)

	require.NoError(t, FixInotify(context.Background(), sess, 524288))

	cmds := exec.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "sudo tee /etc/sysctl.d/60-edkit-inotify.conf", cmds[0].String())
	var stdin bytes.Buffer
	_, err := stdin.ReadFrom(cmds[0].Stdin)
	require.NoError(t, err)
	assert.Equal(t, "fs.inotify.max_user_watches=524288\n", stdin.String())
	assert.Equal(t, "sudo sysctl -p /etc/sysctl.d/60-edkit-inotify.conf", cmds[1].String())
}
