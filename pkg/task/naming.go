package task

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/mklimuk/vault-recur/pkg/vault"
)

// Embedded date patterns, tried in order.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), // YYYY-MM-DD
	regexp.MustCompile(`\d{4}/\d{2}/\d{2}`), // YYYY/MM/DD
	regexp.MustCompile(`\d{2}-\d{2}-\d{4}`), // DD-MM-YYYY
	regexp.MustCompile(`\d{2}/\d{2}/\d{4}`), // DD/MM/YYYY
}

var checklistRe = regexp.MustCompile(`(?m)^([ \t]*)([-*+]|\d+[.)])[ \t]+\[[^\]\n]\]`)

// ResetChecklist turns every checklist item in body into an unchecked one.
// Other lines are left as they are.
func ResetChecklist(body string) string {
	return checklistRe.ReplaceAllString(body, "$1$2 [ ]")
}

// NextFileName derives the base name of the next instance from the current
// one. The first embedded date is replaced by newDue; without one, newDue is
// appended. The result is sanitized.
func NextFileName(basename, newDue string) string {
	name := basename
	replaced := false
	for _, re := range datePatterns {
		if loc := re.FindStringIndex(name); loc != nil {
			name = name[:loc[0]] + newDue + name[loc[1]:]
			replaced = true
			break
		}
	}
	if !replaced {
		name = name + " " + newDue
	}
	return vault.SanitizeFilename(name)
}

// NextPath places the next instance next to the current note, keeping its
// extension.
func NextPath(current, newDue string) string {
	ext := path.Ext(current)
	base := strings.TrimSuffix(path.Base(current), ext)
	if ext == "" {
		ext = ".md"
	}
	return path.Join(path.Dir(current), NextFileName(base, newDue)+ext)
}

// UniquePath returns p if it is free, otherwise the lowest numbered variant
// "name (n).ext" that is free.
func UniquePath(store vault.Storage, p string) (string, error) {
	exists, err := store.Exists(p)
	if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", p, err)
	}
	if !exists {
		return p, nil
	}

	ext := path.Ext(p)
	base := strings.TrimSuffix(p, ext)
	for n := 1; n <= MaxCollisionAttempts; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		exists, err := store.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrCollisionExhausted, p)
}
