package platform

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/edkit-dev/edkit/internal/artifact"
)

// DefaultOSReleasePath is where systemd-era distributions describe themselves.
const DefaultOSReleasePath = "/etc/os-release"

// Info describes the host as far as artifact selection is concerned.
type Info struct {
	OS         string
	Arch       string
	DistroID   string
	DistroLike []string
	Kind       artifact.Kind
	// Token is the download service's platform identifier, e.g. "linux-rpm-x64".
	Token string
}

// Detect inspects the running host.
func Detect() (*Info, error) {
	return DetectFor(runtime.GOOS, runtime.GOARCH, DefaultOSReleasePath)
}

// DetectFor builds Info for an explicit OS/arch pair. osReleasePath is only
// read on Linux; a missing file falls back to the generic tarball.
func DetectFor(goos, goarch, osReleasePath string) (*Info, error) {
	arch, err := archToken(goos, goarch)
	if err != nil {
		return nil, err
	}

	info := &Info{OS: goos, Arch: goarch}

	switch goos {
	case "linux":
		id, like, err := readOSRelease(osReleasePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		info.DistroID = id
		info.DistroLike = like
		switch family(id, like) {
		case "rpm":
			info.Kind = artifact.KindRPM
			info.Token = "linux-rpm-" + arch
		case "deb":
			info.Kind = artifact.KindDeb
			info.Token = "linux-deb-" + arch
		default:
			info.Kind = artifact.KindTarGz
			info.Token = "linux-" + arch
		}
	case "darwin":
		info.Kind = artifact.KindZip
		info.Token = "darwin-" + arch
	case "windows":
		info.Kind = artifact.KindZip
		info.Token = "win32-" + arch + "-archive"
	default:
		return nil, fmt.Errorf("unsupported operating system %q", goos)
	}

	return info, nil
}

func archToken(goos, goarch string) (string, error) {
	switch goarch {
	case "amd64":
		return "x64", nil
	case "arm64":
		return "arm64", nil
	case "arm":
		return "armhf", nil
	}
	return "", fmt.Errorf("unsupported architecture %s/%s", goos, goarch)
}

var (
	rpmFamily = []string{"fedora", "rhel", "centos", "rocky", "almalinux", "opensuse", "suse", "sles", "amzn", "ol"}
	debFamily = []string{"debian", "ubuntu", "linuxmint", "pop", "elementary", "raspbian"}
)

func family(id string, like []string) string {
	candidates := append([]string{id}, like...)
	for _, c := range candidates {
		for _, r := range rpmFamily {
			if c == r || strings.HasPrefix(c, r+"-") {
				return "rpm"
			}
		}
		for _, d := range debFamily {
			if c == d {
				return "deb"
			}
		}
	}
	return ""
}

// readOSRelease extracts ID and ID_LIKE from an os-release file.
func readOSRelease(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	var id string
	var like []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		value = strings.ToLower(strings.Trim(value, `"'`))
		switch key {
		case "ID":
			id = value
		case "ID_LIKE":
			like = strings.Fields(value)
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return id, like, nil
}

// DownloadURL returns the artifact URL for info and variant. A non-empty
// mirror replaces base.
func DownloadURL(base, mirror string, variant Variant, info *Info) string {
	if mirror != "" {
		base = mirror
	}
	return strings.TrimRight(base, "/") + "/" + info.Token + "/" + variant.Channel()
}

// ArtifactName is the cache file name for a variant's artifact.
func ArtifactName(variant Variant, info *Info) string {
	return fmt.Sprintf("%s-%s%s", variant.Binary(), info.Token, info.Kind.Extension())
}
