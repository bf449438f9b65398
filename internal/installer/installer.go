package installer

import (
	"context"
	"fmt"

	"github.com/edkit-dev/edkit/internal/artifact"
	"github.com/edkit-dev/edkit/internal/executor"
	"github.com/edkit-dev/edkit/internal/session"
)

// Installer installs one kind of artifact.
type Installer interface {
	Install(ctx context.Context, sess *session.Session, artifactPath string) error
}

// Dispatch returns the Installer for kind. Kinds without an installer get
// one that always fails.
func Dispatch(kind artifact.Kind) Installer {
	switch kind {
	case artifact.KindRPM:
		return &rpmInstaller{}
	case artifact.KindDeb:
		return &debInstaller{}
	case artifact.KindZip, artifact.KindTarGz:
		return &archiveInstaller{kind: kind}
	default:
		return &unsupportedInstaller{kind: kind}
	}
}

type rpmInstaller struct{}

// Install prefers dnf so dependencies are resolved; plain rpm is the fallback.
func (i *rpmInstaller) Install(ctx context.Context, sess *session.Session, artifactPath string) error {
	cmd := executor.Command{Name: "rpm", Args: []string{"-Uvh", "--replacepkgs", artifactPath}, Sudo: true}
	if sess.Exec.LookPath("dnf") {
		cmd = executor.Command{Name: "dnf", Args: []string{"install", "-y", artifactPath}, Sudo: true}
	}
	if _, err := sess.Exec.Run(ctx, cmd); err != nil {
		return fmt.Errorf("installing %s: %w", artifactPath, err)
	}
	return nil
}

type debInstaller struct{}

// Install runs dpkg and then lets apt pull in missing dependencies. dpkg
// failing on unmet dependencies is expected; apt-get -f is what settles it.
func (i *debInstaller) Install(ctx context.Context, sess *session.Session, artifactPath string) error {
	_, dpkgErr := sess.Exec.Run(ctx, executor.Command{Name: "dpkg", Args: []string{"-i", artifactPath}, Sudo: true})
	if dpkgErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sess.Log.Warn().Err(dpkgErr).Msg("dpkg reported errors, resolving dependencies with apt-get")
	}
	if _, err := sess.Exec.Run(ctx, executor.Command{Name: "apt-get", Args: []string{"install", "-f", "-y"}, Sudo: true}); err != nil {
		if dpkgErr != nil {
			return fmt.Errorf("installing %s: %w (after dpkg: %v)", artifactPath, err, dpkgErr)
		}
		return fmt.Errorf("resolving dependencies for %s: %w", artifactPath, err)
	}
	return nil
}

type unsupportedInstaller struct {
	kind artifact.Kind
}

func (i *unsupportedInstaller) Install(context.Context, *session.Session, string) error {
	return fmt.Errorf("no installer for %s artifacts: supported kinds are rpm, deb, zip and tar.gz", i.kind)
}
