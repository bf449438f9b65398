// Package artifact names the installer formats edkit knows how to fetch and
// identifies them from their leading (or, for disk images, trailing) bytes.
package artifact

import "fmt"

// Kind is an installer package format.
type Kind string

// Supported artifact kinds.
const (
	KindUnknown Kind = ""
	KindRPM     Kind = "rpm"
	KindDeb     Kind = "deb"
	KindZip     Kind = "zip"
	KindTarGz   Kind = "tar.gz"
	KindDMG     Kind = "dmg"
	KindExe     Kind = "exe"
)

var extensions = map[Kind]string{
	KindRPM:   ".rpm",
	KindDeb:   ".deb",
	KindZip:   ".zip",
	KindTarGz: ".tar.gz",
	KindDMG:   ".dmg",
	KindExe:   ".exe",
}

// Extension returns the file extension for the kind, including the dot.
func (k Kind) Extension() string {
	return extensions[k]
}

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// ParseKind converts a user-supplied name ("rpm", ".deb", "tgz") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "rpm", ".rpm":
		return KindRPM, nil
	case "deb", ".deb":
		return KindDeb, nil
	case "zip", ".zip":
		return KindZip, nil
	case "tar.gz", ".tar.gz", "tgz", ".tgz":
		return KindTarGz, nil
	case "dmg", ".dmg":
		return KindDMG, nil
	case "exe", ".exe":
		return KindExe, nil
	}
	return KindUnknown, fmt.Errorf("unknown artifact kind %q", s)
}
