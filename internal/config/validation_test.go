package config

import (
	"strings"
	"testing"
)

func TestValidateBadges_ValidConfig(t *testing.T) {
	if err := ValidateBadges(DefaultBadges()); err != nil {
		t.Errorf("default badges should validate, got: %v", err)
	}
}

func TestValidateBadges_InvalidRole(t *testing.T) {
	badges := []BadgeConfig{
		{Site: "stackoverflow.com", Name: "constituent", ID: 1974, Role: "voter"},
	}

	err := ValidateBadges(badges)
	if err == nil {
		t.Fatal("expected error for invalid role")
	}

	verr, ok := err.(*ValidationErrors)
	if !ok {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}
	if len(verr.InvalidBadges) != 1 {
		t.Errorf("expected 1 invalid badge, got %d", len(verr.InvalidBadges))
	}
	if !strings.Contains(err.Error(), `unknown role "voter"`) {
		t.Errorf("error should name the bad role: %s", err.Error())
	}
}

func TestValidateBadges_Duplicate(t *testing.T) {
	badges := []BadgeConfig{
		{Site: "stackoverflow.com", Name: "constituent", ID: 1974, Role: RoleConstituent},
		{Site: "stackoverflow.com", Name: "constituent-again", ID: 1974, Role: RoleConstituent},
	}

	err := ValidateBadges(badges)
	if err == nil {
		t.Fatal("expected error for duplicate badge")
	}

	verr := err.(*ValidationErrors)
	if len(verr.DuplicateBadges) != 1 {
		t.Errorf("expected 1 duplicate, got %d", len(verr.DuplicateBadges))
	}
}

func TestValidateBadges_MultipleErrors(t *testing.T) {
	badges := []BadgeConfig{
		{Site: "", Name: "constituent", ID: 1974, Role: RoleConstituent},
		{Site: "stackoverflow.com", Name: "caucus", ID: 0, Role: "nope"},
	}

	err := ValidateBadges(badges)
	if err == nil {
		t.Fatal("expected errors")
	}

	verr := err.(*ValidationErrors)
	if len(verr.InvalidBadges) != 3 {
		t.Errorf("expected all 3 problems collected, got %d", len(verr.InvalidBadges))
	}
}
