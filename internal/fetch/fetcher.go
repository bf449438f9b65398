package fetch

import (
	"io"
	"net"
	"net/http"
	"time"

	"github.com/edkit-dev/edkit/internal/logging"
	"github.com/rs/zerolog"
)

const (
	// DefaultConnectTimeout bounds TCP connect and TLS handshake.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultTransferTimeout bounds a whole download, retries included.
	DefaultTransferTimeout = time.Hour
	// DefaultRetryDelay is the fixed pause between transfer attempts.
	DefaultRetryDelay = 5 * time.Second

	defaultUserAgent = "edkit-fetch"
)

// Fetcher performs probes, downloads and verification for one artifact URL at a time.
type Fetcher struct {
	httpClient      *http.Client
	retryDelay      time.Duration
	transferTimeout time.Duration
	userAgent       string
	expectedSHA256  string
	progress        io.Writer
	logger          zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithRetryDelay sets the fixed delay between failed transfer attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithTransferTimeout caps the total time spent downloading in one session.
// Zero disables the cap.
func WithTransferTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.transferTimeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithExpectedSHA256 pins the artifact digest checked by Verify.
func WithExpectedSHA256(hexDigest string) Option {
	return func(f *Fetcher) {
		f.expectedSHA256 = hexDigest
	}
}

// WithProgress enables a percentage progress line written to w.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) {
		f.progress = w
	}
}

// WithLogger sets the logger used for session events.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher with the given options.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:      NewHTTPClient(DefaultConnectTimeout),
		retryDelay:      DefaultRetryDelay,
		transferTimeout: DefaultTransferTimeout,
		userAgent:       defaultUserAgent,
		logger:          logging.GetLogger("fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHTTPClient returns a client whose dial and TLS handshake honour
// connectTimeout. The response body itself is bounded by the caller's context.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = connectTimeout
	return &http.Client{Transport: transport}
}
