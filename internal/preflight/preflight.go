package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/edkit-dev/edkit/internal/executor"
	"github.com/edkit-dev/edkit/internal/platform"
	"github.com/edkit-dev/edkit/internal/session"
	"github.com/edkit-dev/edkit/internal/settings"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Check names, in report order.
const (
	CheckDiskSpace   = "disk space"
	CheckNetwork     = "network"
	CheckCacheDir    = "cache directory"
	CheckSettingsDir = "settings directory"
	CheckInotify     = "inotify watches"
)

const (
	inotifyProcPath = "/proc/sys/fs/inotify/max_user_watches"
	inotifyDropIn   = "/etc/sysctl.d/60-edkit-inotify.conf"
)

// Checker runs the preflight checks for one session.
type Checker struct {
	sess        *session.Session
	goos        string
	inotifyPath string
	settingsDir string
	diskFree    func(string) (uint64, error)
}

// NewChecker prepares the checks for sess.
func NewChecker(sess *session.Session) *Checker {
	c := &Checker{
		sess:        sess,
		goos:        runtime.GOOS,
		inotifyPath: inotifyProcPath,
		diskFree:    diskFree,
	}
	if path, err := settings.UserSettingsPath(sess.Platform, sess.Variant); err == nil {
		c.settingsDir = filepath.Dir(path)
	}
	return c
}

// Run executes every check and writes the report to w.
func Run(ctx context.Context, sess *session.Session, w io.Writer) (*Report, error) {
	return NewChecker(sess).Run(ctx, w)
}

// Run executes the checks concurrently. The report keeps declaration order
// whatever order the checks finish in.
func (c *Checker) Run(ctx context.Context, w io.Writer) (*Report, error) {
	checks := []struct {
		name string
		fn   func(context.Context) Result
	}{
		{CheckDiskSpace, c.checkDiskSpace},
		{CheckNetwork, c.checkNetwork},
		{CheckCacheDir, func(context.Context) Result { return checkWritable(c.sess.Settings.CacheDir) }},
		{CheckSettingsDir, func(context.Context) Result { return checkWritable(c.settingsDir) }},
	}
	if c.goos == "linux" {
		checks = append(checks, struct {
			name string
			fn   func(context.Context) Result
		}{CheckInotify, c.checkInotify})
	}

	results := make([]Result, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			res := check.fn(gctx)
			res.Name = check.name
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Results: results}
	if w != nil {
		report.Write(w)
	}
	for _, res := range results {
		c.sess.Log.Debug().Str("check", res.Name).Str("status", res.Status.Tag()).Str("message", res.Message).Msg("Preflight check")
	}
	return report, nil
}

func (c *Checker) checkDiskSpace(context.Context) Result {
	p := message.NewPrinter(language.English)
	dir := platform.ParentOf(c.sess.Settings.CacheDir)
	free, err := c.diskFree(dir)
	if err != nil {
		return Result{Status: StatusWarn, Message: fmt.Sprintf("cannot determine free space in %s: %v", dir, err)}
	}
	freeMB := int64(free / (1024 * 1024))
	need := c.sess.Settings.MinFreeSpaceMB
	if freeMB < need {
		return Result{Status: StatusFail, Message: p.Sprintf("%d MB free in %s, need %d MB", freeMB, dir, need)}
	}
	return Result{Status: StatusOK, Message: p.Sprintf("%d MB free in %s", freeMB, dir)}
}

func (c *Checker) checkNetwork(ctx context.Context) Result {
	url := c.sess.DownloadURL()
	remote, err := c.sess.Fetcher().Probe(ctx, url)
	if err != nil {
		return Result{Status: StatusFail, Message: err.Error()}
	}
	p := message.NewPrinter(language.English)
	return Result{Status: StatusOK, Message: p.Sprintf("%s reachable (%d bytes)", url, remote.ContentLength)}
}

func checkWritable(dir string) Result {
	if dir == "" {
		return Result{Status: StatusWarn, Message: "location unknown on this platform"}
	}
	target := platform.ParentOf(dir)
	if err := platform.CheckWritable(target); err != nil {
		return Result{Status: StatusFail, Message: err.Error()}
	}
	if target != dir {
		return Result{Status: StatusOK, Message: fmt.Sprintf("%s will be created (parent %s is writable)", dir, target)}
	}
	return Result{Status: StatusOK, Message: dir + " is writable"}
}

func (c *Checker) checkInotify(context.Context) Result {
	current, err := readInotifyLimit(c.inotifyPath)
	if err != nil {
		return Result{Status: StatusWarn, Message: err.Error()}
	}
	want := c.sess.Settings.MinInotifyWatches
	if current < want {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("max_user_watches is %d, recommended %d (run with --fix)", current, want),
		}
	}
	return Result{Status: StatusOK, Message: fmt.Sprintf("max_user_watches is %d", current)}
}

func readInotifyLimit(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return n, nil
}

// FixInotify raises fs.inotify.max_user_watches persistently with a sysctl
// drop-in and applies it immediately.
func FixInotify(ctx context.Context, sess *session.Session, watches int) error {
	content := fmt.Sprintf("fs.inotify.max_user_watches=%d\n", watches)
	if _, err := sess.Exec.Run(ctx, executor.Command{
		Name:  "tee",
		Args:  []string{inotifyDropIn},
		Sudo:  true,
		Stdin: strings.NewReader(content),
	}); err != nil {
		return fmt.Errorf("writing %s: %w", inotifyDropIn, err)
	}
	if _, err := sess.Exec.Run(ctx, executor.Command{
		Name: "sysctl",
		Args: []string{"-p", inotifyDropIn},
		Sudo: true,
	}); err != nil {
		return fmt.Errorf("applying %s: %w", inotifyDropIn, err)
	}
	sess.Log.Info().Int("watches", watches).Str("path", inotifyDropIn).Msg("Raised inotify watch limit")
	return nil
}
