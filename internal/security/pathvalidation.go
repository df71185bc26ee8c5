// Package security holds the path checks applied to user-supplied input,
// output and export locations.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateWithinDirectory checks lexically that filePath stays inside baseDir
// once both are cleaned. It does not touch the filesystem, so it works for
// paths that do not exist yet (chart files about to be written).
func ValidateWithinDirectory(filePath, baseDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory path: %w", err)
	}

	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", baseDir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, baseDir)
	}
	return nil
}

// ValidateExtension rejects paths whose extension is not one of allowed.
// The comparison ignores case; allowed entries include the leading dot.
func ValidateExtension(filePath string, allowed ...string) error {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return nil
		}
	}
	return fmt.Errorf("%s: extension %q not allowed (want one of %v)", filePath, ext, allowed)
}

// SanitizeFilename makes a safe file name from an arbitrary string, such as
// the input CSV base name used for the run directory. Characters outside
// ASCII letters, digits, dot, underscore and dash become a single underscore.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
