package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edkit-dev/edkit/internal/artifact"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a fetch session state.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateDownloading
	StateRetrying
	StateVerifying
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateDownloading:
		return "downloading"
	case StateRetrying:
		return "retrying"
	case StateVerifying:
		return "verifying"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Retrying only ever leads back to Downloading; a new probe is a new session.
var transitions = map[State][]State{
	StateIdle:        {StateProbing},
	StateProbing:     {StateDownloading, StateVerifying, StateFailed},
	StateDownloading: {StateRetrying, StateVerifying, StateFailed},
	StateRetrying:    {StateDownloading, StateFailed},
	StateVerifying:   {StateComplete, StateFailed},
}

// Request describes one artifact to acquire.
type Request struct {
	URL        string
	Path       string
	Kind       artifact.Kind
	Force      bool
	MaxRetries int
}

// Result is what a completed session hands to the installer.
type Result struct {
	SessionID   string
	Artifact    LocalArtifact
	Remote      *RemoteArtifactInfo
	Kind        artifact.Kind
	Reason      Reason
	Downloaded  bool
	Resumed     bool
	ResumedFrom int64
}

// Session is a single probe-to-verification run.
type Session struct {
	ID      string
	fetcher *Fetcher
	state   State
	history []State
	logger  zerolog.Logger
}

// NewSession starts an idle session.
func (f *Fetcher) NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		ID:      id,
		fetcher: f,
		state:   StateIdle,
		history: []State{StateIdle},
		logger:  f.logger.With().Str("session", id).Logger(),
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// History returns every state the session has been in, in order.
func (s *Session) History() []State {
	return append([]State(nil), s.history...)
}

func (s *Session) transition(to State) {
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.logger.Debug().Stringer("from", s.state).Stringer("to", to).Msg("Session transition")
			s.state = to
			s.history = append(s.history, to)
			return
		}
	}
	panic(fmt.Sprintf("fetch: invalid session transition %s -> %s", s.state, to))
}

func (s *Session) fail(err error) (*Result, error) {
	s.transition(StateFailed)
	s.logger.Error().Err(err).Msg("Fetch session failed")
	return nil, err
}

// Run drives the session to Complete or Failed. A session can only run once.
func (s *Session) Run(ctx context.Context, req Request) (*Result, error) {
	if s.state != StateIdle {
		return nil, fmt.Errorf("fetch session %s already ran (state %s)", s.ID, s.state)
	}
	f := s.fetcher

	s.transition(StateProbing)
	fresh, err := f.Probe(ctx, req.URL)
	if err != nil {
		return s.fail(err)
	}
	decision, err := f.planWith(fresh, req.Path, req.Force)
	if err != nil {
		return s.fail(err)
	}
	s.logger.Info().
		Str("url", req.URL).
		Str("path", req.Path).
		Str("reason", string(decision.Reason)).
		Int64("content_length", fresh.ContentLength).
		Int64("size_on_disk", decision.Local.SizeOnDisk).
		Msg("Download decision")

	result := &Result{SessionID: s.ID, Remote: fresh, Kind: req.Kind, Reason: decision.Reason}

	if decision.Needed {
		if err := os.MkdirAll(filepath.Dir(req.Path), 0755); err != nil {
			return s.fail(fmt.Errorf("creating cache directory: %w", err))
		}
		if decision.Reason.Restart() {
			if err := Discard(req.Path); err != nil {
				return s.fail(err)
			}
		}
		// Recorded before the transfer so an interrupted run can resume.
		if err := SaveSidecar(req.Path, fresh); err != nil {
			return s.fail(err)
		}

		local, err := Stat(req.Path)
		if err != nil {
			return s.fail(err)
		}
		result.Resumed = local.SizeOnDisk > 0
		result.ResumedFrom = local.SizeOnDisk

		s.transition(StateDownloading)
		dlCtx := ctx
		if f.transferTimeout > 0 {
			var cancel context.CancelFunc
			dlCtx, cancel = context.WithTimeout(ctx, f.transferTimeout)
			defer cancel()
		}
		onRetry := func(attempt int, offset int64, err error) {
			s.transition(StateRetrying)
			s.logger.Info().Int("attempt", attempt).Int64("resume_offset", offset).Msg("Retrying transfer")
			s.transition(StateDownloading)
		}
		if _, err := f.fetch(dlCtx, fresh, local, req.MaxRetries, onRetry); err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && errors.Is(fe.Kind, ErrSizeMismatch) && fe.Actual > fe.Expected {
				_ = Discard(req.Path)
			}
			return s.fail(err)
		}
		result.Downloaded = true
	}

	s.transition(StateVerifying)
	local, err := Stat(req.Path)
	if err != nil {
		return s.fail(err)
	}
	if err := f.Verify(local, fresh, req.Kind); err != nil {
		if IsCorrupt(err) {
			s.logger.Warn().Err(err).Str("path", req.Path).Msg("Discarding corrupt artifact")
			if discardErr := Discard(req.Path); discardErr != nil {
				err = errors.Join(err, discardErr)
			}
		}
		return s.fail(err)
	}

	if !result.Downloaded {
		// A verified file adopted without a usable record gets one now, so
		// the next decision does not treat it as unknown again.
		if known, err := LoadSidecar(req.Path); err != nil || known == nil || known.URL != fresh.URL {
			if err := SaveSidecar(req.Path, fresh); err != nil {
				return s.fail(err)
			}
		}
	}

	s.transition(StateComplete)
	result.Artifact = local
	return result, nil
}

// Acquire runs sessions for req until one completes. The artifact is locked
// for the duration. A corrupt artifact is discarded and fetched once more
// from byte 0 in a fresh session; every other failure is returned as is.
func (f *Fetcher) Acquire(ctx context.Context, req Request) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(req.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	lock, err := AcquireLock(req.Path, f.transferTimeout)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	result, err := f.NewSession().Run(ctx, req)
	if err == nil || !IsCorrupt(err) {
		return result, err
	}
	f.logger.Warn().Err(err).Msg("Artifact failed verification, fetching again")
	return f.NewSession().Run(ctx, req)
}
