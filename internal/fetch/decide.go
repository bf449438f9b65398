package fetch

import "context"

// Reason explains a download decision.
type Reason string

const (
	ReasonForced     Reason = "forced"
	ReasonMissing    Reason = "missing"
	ReasonIncomplete Reason = "incomplete"
	ReasonOversized  Reason = "oversized"
	ReasonChanged    Reason = "changed"
	ReasonUnknown    Reason = "unknown-provenance"
	ReasonCurrent    Reason = "current"
)

// Restart reports whether the cached bytes must be thrown away before
// downloading, as opposed to being resumed.
func (r Reason) Restart() bool {
	switch r {
	case ReasonForced, ReasonOversized, ReasonChanged, ReasonUnknown:
		return true
	}
	return false
}

// Decision is the outcome of comparing local state with remote metadata.
type Decision struct {
	Needed bool
	Reason Reason
	Local  LocalArtifact
	// Known is the last-known remote state the local file was fetched against.
	Known *RemoteArtifactInfo
	// Fresh is the probe taken for this decision, nil if none was needed.
	Fresh *RemoteArtifactInfo
}

// decide applies the download rules in order. fresh may be nil when the
// earlier rules already settle the answer.
func decide(local LocalArtifact, known, fresh *RemoteArtifactInfo, force bool) Decision {
	d := Decision{Needed: true, Local: local, Known: known, Fresh: fresh}
	switch {
	case force:
		d.Reason = ReasonForced
	case !local.Exists:
		d.Reason = ReasonMissing
	case known != nil && local.SizeOnDisk < known.ContentLength:
		d.Reason = ReasonIncomplete
	case known != nil && local.SizeOnDisk > known.ContentLength:
		d.Reason = ReasonOversized
	case fresh == nil:
		// Caller must probe before the freshness rule can be applied.
		d.Reason = ""
	case !known.SameArtifact(fresh):
		d.Reason = ReasonChanged
	default:
		d.Needed = false
		d.Reason = ReasonCurrent
	}
	return d
}

// NeedsDownload reports whether local must be (re)fetched given the last-known
// remote state. Only when the local copy looks complete does it re-probe the
// remote, to detect a newly published artifact. The probe is its only side effect.
func (f *Fetcher) NeedsDownload(ctx context.Context, local LocalArtifact, known *RemoteArtifactInfo, force bool) (bool, error) {
	d, err := f.Decide(ctx, local, known, force)
	if err != nil {
		return false, err
	}
	return d.Needed, nil
}

// Decide is NeedsDownload returning the full Decision.
func (f *Fetcher) Decide(ctx context.Context, local LocalArtifact, known *RemoteArtifactInfo, force bool) (Decision, error) {
	d := decide(local, known, nil, force)
	if d.Reason != "" {
		return d, nil
	}
	if known == nil {
		return Decision{Needed: true, Reason: ReasonUnknown, Local: local}, nil
	}

	fresh, err := f.Probe(ctx, known.URL)
	if err != nil {
		return Decision{}, err
	}
	return decide(local, known, fresh, force), nil
}

// Plan probes url and compares the result with the artifact cached at path
// and its sidecar. It never modifies the cache.
func (f *Fetcher) Plan(ctx context.Context, url, path string, force bool) (Decision, error) {
	fresh, err := f.Probe(ctx, url)
	if err != nil {
		return Decision{}, err
	}
	return f.planWith(fresh, path, force)
}

func (f *Fetcher) planWith(fresh *RemoteArtifactInfo, path string, force bool) (Decision, error) {
	local, err := Stat(path)
	if err != nil {
		return Decision{}, err
	}

	known, err := LoadSidecar(path)
	if err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("Ignoring unreadable sidecar")
		known = nil
	}
	if known != nil && known.URL != fresh.URL {
		known = nil
	}

	if known == nil && local.Exists && !force {
		// Cached bytes without a record of what they belong to are only kept
		// when they already have the advertised size; Verify catches the rest.
		if local.SizeOnDisk != fresh.ContentLength {
			return Decision{Needed: true, Reason: ReasonUnknown, Local: local, Fresh: fresh}, nil
		}
		known = fresh
	}

	// A partial file recorded against an older artifact cannot be resumed.
	if known != nil && !force && local.Exists && local.SizeOnDisk < known.ContentLength && !known.SameArtifact(fresh) {
		return Decision{Needed: true, Reason: ReasonChanged, Local: local, Known: known, Fresh: fresh}, nil
	}

	return decide(local, known, fresh, force), nil
}
