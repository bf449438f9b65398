package platform

import "fmt"

// Variant is an editor release channel.
type Variant string

const (
	VariantStable   Variant = "stable"
	VariantInsiders Variant = "insiders"
)

// ParseVariant validates a variant name from config or flags.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "", "stable":
		return VariantStable, nil
	case "insiders", "insider":
		return VariantInsiders, nil
	}
	return "", fmt.Errorf("unknown editor variant %q (expected stable or insiders)", s)
}

// Channel is the path segment the download service uses for the variant.
func (v Variant) Channel() string {
	if v == VariantInsiders {
		return "insider"
	}
	return "stable"
}

// Binary is the launcher command placed on PATH by the installer.
func (v Variant) Binary() string {
	if v == VariantInsiders {
		return "code-insiders"
	}
	return "code"
}

// ProcessNames lists process command names that belong to a running editor.
func (v Variant) ProcessNames() []string {
	if v == VariantInsiders {
		return []string{"code-insiders", "Code - Insiders", "Code - Insiders Helper"}
	}
	return []string{"code", "Code", "Code Helper"}
}

// ConfigDirName is the directory under the OS config root holding User/settings.json.
func (v Variant) ConfigDirName() string {
	if v == VariantInsiders {
		return "Code - Insiders"
	}
	return "Code"
}
