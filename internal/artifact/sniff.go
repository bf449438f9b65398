package artifact

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	headLen = 64
	// UDIF images end with a 512-byte "koly" trailer.
	dmgTrailerLen = 512
)

var (
	magicRPM     = []byte{0xED, 0xAB, 0xEE, 0xDB}
	magicAr      = []byte("!<arch>\n")
	magicDebian  = []byte("debian-binary")
	magicZip     = []byte("PK\x03\x04")
	magicZipNull = []byte("PK\x05\x06")
	magicGzip    = []byte{0x1F, 0x8B}
	magicExe     = []byte("MZ")
	magicKoly    = []byte("koly")
)

// Sniff inspects the file at path and returns its kind, or KindUnknown when
// no known signature matches.
func Sniff(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, fmt.Errorf("opening %s for type check: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, headLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return KindUnknown, fmt.Errorf("reading %s: %w", path, err)
	}
	head = head[:n]

	if k := sniffHead(head); k != KindUnknown {
		return k, nil
	}

	info, err := f.Stat()
	if err != nil {
		return KindUnknown, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() < dmgTrailerLen {
		return KindUnknown, nil
	}
	trailer := make([]byte, len(magicKoly))
	if _, err := f.ReadAt(trailer, info.Size()-dmgTrailerLen); err != nil {
		return KindUnknown, fmt.Errorf("reading trailer of %s: %w", path, err)
	}
	if bytes.Equal(trailer, magicKoly) {
		return KindDMG, nil
	}
	return KindUnknown, nil
}

func sniffHead(head []byte) Kind {
	switch {
	case bytes.HasPrefix(head, magicRPM):
		return KindRPM
	case bytes.HasPrefix(head, magicAr):
		// The first ar member of a .deb is always "debian-binary".
		if len(head) >= 8+len(magicDebian) && bytes.Equal(head[8:8+len(magicDebian)], magicDebian) {
			return KindDeb
		}
		return KindUnknown
	case bytes.HasPrefix(head, magicZip), bytes.HasPrefix(head, magicZipNull):
		return KindZip
	case bytes.HasPrefix(head, magicGzip):
		return KindTarGz
	case bytes.HasPrefix(head, magicExe):
		return KindExe
	}
	return KindUnknown
}
