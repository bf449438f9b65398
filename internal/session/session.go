// Package session holds the state shared by the steps of one edkit run.
//
// Each step of the install pipeline reads its inputs from the Session and
// records its outputs there (the backup it made, the artifact it fetched),
// so no step depends on files left behind by another.
package session

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/edkit-dev/edkit/internal/config"
	"github.com/edkit-dev/edkit/internal/executor"
	"github.com/edkit-dev/edkit/internal/fetch"
	"github.com/edkit-dev/edkit/internal/logging"
	"github.com/edkit-dev/edkit/internal/platform"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is one edkit invocation.
type Session struct {
	ID       string
	DryRun   bool
	Exec     executor.Executor
	Platform *platform.Info
	Variant  platform.Variant
	Settings config.Settings

	// BackupPath is set once the user configuration has been backed up.
	BackupPath string
	// Artifact is set once a verified artifact is in the cache.
	Artifact *fetch.Result

	// Out receives user-facing progress lines.
	Out io.Writer
	Log zerolog.Logger

	httpClient *http.Client
	progress   io.Writer
	userAgent  string
}

// Option configures a Session.
type Option func(*Session)

// WithExecutor replaces the executor chosen from the dry-run flag.
func WithExecutor(e executor.Executor) Option {
	return func(s *Session) { s.Exec = e }
}

// WithPlatform skips host detection.
func WithPlatform(info *platform.Info) Option {
	return func(s *Session) { s.Platform = info }
}

// WithOutput sets where user-facing lines are written.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.Out = w }
}

// WithProgress enables the download progress line.
func WithProgress(w io.Writer) Option {
	return func(s *Session) { s.progress = w }
}

// WithHTTPClient sets the client used for probes and downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// WithUserAgent sets the User-Agent sent to the download service.
func WithUserAgent(ua string) Option {
	return func(s *Session) { s.userAgent = ua }
}

// New builds a session from resolved settings.
func New(settings config.Settings, dryRun bool, opts ...Option) (*Session, error) {
	variant, err := platform.ParseVariant(settings.Variant)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		ID:       id,
		DryRun:   dryRun,
		Variant:  variant,
		Settings: settings,
		Out:      os.Stderr,
		Log:      logging.GetLogger("session").With().Str("session", id).Bool("dry_run", dryRun).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.Exec == nil {
		s.Exec = executor.New(dryRun)
	}
	if s.Platform == nil {
		info, err := platform.Detect()
		if err != nil {
			return nil, err
		}
		s.Platform = info
	}
	s.Log = s.Log.With().Str("platform", s.Platform.Token).Str("variant", string(variant)).Logger()
	return s, nil
}

// DownloadURL is the artifact URL for this host and variant.
func (s *Session) DownloadURL() string {
	return platform.DownloadURL(s.Settings.DownloadBaseURL, s.Settings.Mirror, s.Variant, s.Platform)
}

// ArtifactPath is where the artifact is cached.
func (s *Session) ArtifactPath() string {
	return filepath.Join(s.Settings.CacheDir, platform.ArtifactName(s.Variant, s.Platform))
}

// Fetcher returns a fetcher configured from the session settings.
func (s *Session) Fetcher() *fetch.Fetcher {
	client := s.httpClient
	if client == nil {
		client = fetch.NewHTTPClient(s.Settings.ConnectTimeout)
	}
	opts := []fetch.Option{
		fetch.WithHTTPClient(client),
		fetch.WithRetryDelay(s.Settings.RetryDelay),
		fetch.WithTransferTimeout(s.Settings.TransferTimeout),
		fetch.WithExpectedSHA256(s.Settings.ExpectedSHA256),
		fetch.WithLogger(s.Log.With().Str("component", "fetch").Logger()),
	}
	if s.progress != nil {
		opts = append(opts, fetch.WithProgress(s.progress))
	}
	if s.userAgent != "" {
		opts = append(opts, fetch.WithUserAgent(s.userAgent))
	}
	return fetch.New(opts...)
}

// Request is the fetch request for this session's artifact.
func (s *Session) Request(force bool) fetch.Request {
	return fetch.Request{
		URL:        s.DownloadURL(),
		Path:       s.ArtifactPath(),
		Kind:       s.Platform.Kind,
		Force:      force,
		MaxRetries: s.Settings.MaxRetries,
	}
}
