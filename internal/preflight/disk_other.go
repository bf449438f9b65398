//go:build !unix

package preflight

import "errors"

func diskFree(string) (uint64, error) {
	return 0, errors.New("free space is not reported on this platform")
}
