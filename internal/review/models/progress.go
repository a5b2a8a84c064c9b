package models

import (
	"fmt"

	dErrors "expatdesk/pkg/domain-errors"
)

// ParseSections validates section ids and returns them deduplicated in
// wizard order.
func ParseSections(ids []string) ([]Section, error) {
	seen := make(map[Section]bool, len(ids))
	for _, raw := range ids {
		s := Section(raw)
		if !s.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown section %q", raw))
		}
		seen[s] = true
	}
	return inWizardOrder(seen), nil
}

// MergeProgress unions stored and incoming progress. Sections are never
// removed.
func MergeProgress(stored, incoming []Section) []Section {
	seen := make(map[Section]bool, len(stored)+len(incoming))
	for _, s := range stored {
		seen[s] = true
	}
	for _, s := range incoming {
		if s.IsValid() {
			seen[s] = true
		}
	}
	return inWizardOrder(seen)
}

// AllSections returns a fresh copy of every section in wizard order.
func AllSections() []Section {
	return append([]Section(nil), Sections...)
}

// IsComplete reports whether progress covers every section.
func IsComplete(progress []Section) bool {
	seen := make(map[Section]bool, len(progress))
	for _, s := range progress {
		seen[s] = true
	}
	for _, s := range Sections {
		if !seen[s] {
			return false
		}
	}
	return true
}

// SectionStrings renders progress for the wire and the database.
func SectionStrings(progress []Section) []string {
	out := make([]string, len(progress))
	for i, s := range progress {
		out[i] = string(s)
	}
	return out
}

func inWizardOrder(seen map[Section]bool) []Section {
	out := make([]Section, 0, len(seen))
	for _, s := range Sections {
		if seen[s] {
			out = append(out, s)
		}
	}
	return out
}
