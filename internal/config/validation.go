package config

import (
	"fmt"
	"strings"
)

const (
	RoleConstituent = "constituent"
	RoleCaucus      = "caucus"
	RoleOther       = "other"
)

var validRoles = map[string]bool{
	RoleConstituent: true,
	RoleCaucus:      true,
	RoleOther:       true,
}

// InvalidBadge describes one rejected badge entry.
type InvalidBadge struct {
	Badge  BadgeConfig
	Reason string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	InvalidBadges   []InvalidBadge
	DuplicateBadges []BadgeConfig
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidBadges) > 0 || len(e.DuplicateBadges) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("badge configuration validation failed:\n")

	if len(e.InvalidBadges) > 0 {
		sb.WriteString("\nInvalid badges:\n")
		for _, ib := range e.InvalidBadges {
			sb.WriteString(fmt.Sprintf("  - %s/%s (id %d): %s\n",
				ib.Badge.Site, ib.Badge.Name, ib.Badge.ID, ib.Reason))
		}
		sb.WriteString("\nValid roles: constituent, caucus, other\n")
	}

	if len(e.DuplicateBadges) > 0 {
		sb.WriteString("\nDuplicate badges:\n")
		for _, b := range e.DuplicateBadges {
			sb.WriteString(fmt.Sprintf("  - %s badge %d listed more than once\n", b.Site, b.ID))
		}
	}

	return sb.String()
}

// ValidateBadges checks every badge entry, collecting all problems before
// reporting.
func ValidateBadges(badges []BadgeConfig) error {
	errs := &ValidationErrors{}

	type key struct {
		site string
		id   int
	}
	seen := make(map[key]bool)

	for _, b := range badges {
		if b.Site == "" {
			errs.InvalidBadges = append(errs.InvalidBadges, InvalidBadge{b, "site is required"})
		}
		if b.Name == "" {
			errs.InvalidBadges = append(errs.InvalidBadges, InvalidBadge{b, "name is required"})
		}
		if b.ID <= 0 {
			errs.InvalidBadges = append(errs.InvalidBadges, InvalidBadge{b, "id must be positive"})
		}
		if !validRoles[b.Role] {
			errs.InvalidBadges = append(errs.InvalidBadges, InvalidBadge{b, fmt.Sprintf("unknown role %q", b.Role)})
		}

		k := key{site: b.Site, id: b.ID}
		if seen[k] {
			errs.DuplicateBadges = append(errs.DuplicateBadges, b)
		}
		seen[k] = true
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
