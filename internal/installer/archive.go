package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/edkit-dev/edkit/internal/artifact"
	"github.com/edkit-dev/edkit/internal/branding"
	"github.com/edkit-dev/edkit/internal/platform"
	"github.com/edkit-dev/edkit/internal/session"
)

// InstallDir is where archive builds of variant are unpacked.
func InstallDir(variant platform.Variant) string {
	return filepath.Join(xdg.DataHome, branding.CLIName(), string(variant))
}

type archiveInstaller struct {
	kind artifact.Kind
	// dir overrides InstallDir in tests.
	dir string
	// binDir overrides xdg.BinHome in tests.
	binDir string
}

// Install unpacks into a staging directory next to the target and swaps it
// in, so a failed extraction leaves the previous install untouched.
func (i *archiveInstaller) Install(ctx context.Context, sess *session.Session, artifactPath string) error {
	dest := i.dir
	if dest == "" {
		dest = InstallDir(sess.Variant)
	}
	sess.Log.Info().Str("archive", artifactPath).Str("dest", dest).Msg("Unpacking editor archive")
	if sess.DryRun {
		return nil
	}

	staging := dest + ".new"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clearing %s: %w", staging, err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", staging, err)
	}

	var err error
	if i.kind == artifact.KindZip {
		err = extractZip(ctx, artifactPath, staging)
	} else {
		err = extractTarGz(ctx, artifactPath, staging)
	}
	if err != nil {
		os.RemoveAll(staging)
		return err
	}

	root, err := singleRoot(staging)
	if err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := swap(root, staging, dest); err != nil {
		return err
	}

	if sess.Platform.OS == "linux" {
		return i.linkLauncher(sess, dest)
	}
	return nil
}

// singleRoot returns the lone top-level directory of an archive such as
// VSCode-linux-x64/, or dir itself when the archive has several entries.
func singleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}
	if len(entries) == 1 && entries[0].IsDir() && !strings.HasSuffix(entries[0].Name(), ".app") {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

func swap(src, staging, dest string) error {
	old := dest + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clearing %s: %w", old, err)
	}
	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, old); err != nil {
			return fmt.Errorf("moving previous install aside: %w", err)
		}
	}
	if err := os.Rename(src, dest); err != nil {
		if _, statErr := os.Stat(old); statErr == nil {
			os.Rename(old, dest)
		}
		return fmt.Errorf("moving new install into place: %w", err)
	}
	os.RemoveAll(old)
	if src != staging {
		os.RemoveAll(staging)
	}
	return nil
}

// linkLauncher points ~/.local/bin/<binary> at the unpacked launcher script.
func (i *archiveInstaller) linkLauncher(sess *session.Session, dest string) error {
	launcher := filepath.Join(dest, "bin", sess.Variant.Binary())
	if _, err := os.Stat(launcher); err != nil {
		sess.Log.Warn().Str("path", launcher).Msg("Archive has no launcher script, not linking")
		return nil
	}
	binDir := i.binDir
	if binDir == "" {
		binDir = xdg.BinHome
	}
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	link := filepath.Join(binDir, sess.Variant.Binary())
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing %s: %w", link, err)
	}
	if err := os.Symlink(launcher, link); err != nil {
		return fmt.Errorf("linking %s: %w", link, err)
	}
	return nil
}

// safeJoin resolves an archive entry name under dest, rejecting names that
// would land outside it.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("archive entry %q has an absolute path", name)
	}
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the install directory", name)
	}
	return target, nil
}

// checkLink rejects symlinks whose target resolves outside dest.
func checkLink(dest, linkPath, target string) error {
	if filepath.IsAbs(target) {
		return fmt.Errorf("symlink %s points to absolute path %s", linkPath, target)
	}
	resolved := filepath.Join(filepath.Dir(linkPath), target)
	rel, err := filepath.Rel(dest, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("symlink %s escapes the install directory", linkPath)
	}
	return nil
}

func extractTarGz(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLink(dest, target, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s: %w", target, err)
			}
		default:
			// Hard links and devices do not occur in editor builds.
		}
	}
}

func extractZip(ctx context.Context, archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case mode&os.ModeSymlink != 0:
			if err := extractZipLink(dest, target, f); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("opening zip entry: %w", err)
			}
			err = writeEntry(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// extractZipLink recreates a symlink stored in a zip, where the entry body
// is the link target. macOS app bundles depend on these.
func extractZipLink(dest, target string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening zip entry: %w", err)
	}
	defer rc.Close()
	linkname, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return fmt.Errorf("reading symlink %s: %w", f.Name, err)
	}
	if err := checkLink(dest, target, string(linkname)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	if err := os.Symlink(string(linkname), target); err != nil {
		return fmt.Errorf("creating symlink %s: %w", target, err)
	}
	return nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", target, err)
	}
	return out.Close()
}
