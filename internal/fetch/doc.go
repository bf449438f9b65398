// Package fetch downloads editor installer artifacts into a local cache.
//
// A fetch session probes the remote for its size and freshness validators,
// decides whether the cached copy is current, resumes partial downloads with
// byte-range requests, retries transfer failures with a fixed delay and finally
// checks the result's size and file-type signature before it is handed to an
// installer. Probe results are kept in a JSON sidecar next to the artifact so
// the next run can tell whether the server has published something new.
//
// Verification is a size and magic-byte check only. It does not prove the
// artifact is authentic; an optional SHA-256 pin can be configured with
// WithExpectedSHA256.
package fetch
