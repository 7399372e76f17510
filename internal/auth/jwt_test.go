package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("test-secret", "u-1", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	actor, err := ParseToken("test-secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.ID != "u-1" || actor.Role != RoleAdmin {
		t.Errorf("unexpected actor: %+v", actor)
	}
	if !actor.IsAdmin() {
		t.Error("admin role should report IsAdmin")
	}
}

func TestParseToken_MissingRoleDefaultsToUser(t *testing.T) {
	token, err := IssueToken("test-secret", "u-1", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	actor, err := ParseToken("test-secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Role != RoleUser {
		t.Errorf("expected default role user, got %q", actor.Role)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := IssueToken("test-secret", "u-1", RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseToken("other-secret", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, err := IssueToken("test-secret", "u-1", RoleUser, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseToken("test-secret", token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	if _, err := IssueToken("", "u-1", RoleUser, time.Hour); err == nil {
		t.Fatal("expected error without a secret")
	}
}
