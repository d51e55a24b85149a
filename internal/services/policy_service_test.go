package services

import (
	"errors"
	"testing"

	"github.com/you/otpsvc/internal/mocks"
)

func TestPolicyServiceImpl_AddPolicy(t *testing.T) {
	t.Run("adds and saves", func(t *testing.T) {
		enforcer := mocks.NewMockCasbinEnforcer()
		saved := false
		enforcer.SavePolicyFunc = func() error {
			saved = true
			return nil
		}
		svc := NewPolicyServiceWithEnforcer(enforcer)

		if err := svc.AddPolicy("role_operator", "/admin/challenges/*", "GET"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !saved {
			t.Error("expected policy to be persisted")
		}
	})

	t.Run("enforcer failure surfaces", func(t *testing.T) {
		enforcer := mocks.NewMockCasbinEnforcer()
		enforcer.AddPolicyFunc = func(params ...interface{}) (bool, error) {
			return false, errors.New("adapter down")
		}
		svc := NewPolicyServiceWithEnforcer(enforcer)

		if err := svc.AddPolicy("role_operator", "/admin/*", "GET"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestPolicyServiceImpl_CheckPermission(t *testing.T) {
	enforcer := mocks.NewMockCasbinEnforcer()
	svc := NewPolicyServiceWithEnforcer(enforcer)

	allowed, err := svc.CheckPermission("role_admin", "/admin/challenges/ch-1", "GET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected admin access to be allowed")
	}

	denied, err := svc.CheckPermission("role_user", "/admin/challenges/ch-1", "GET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if denied {
		t.Error("expected non-admin access to be denied")
	}
}

func TestPolicyServiceImpl_RemovePolicy(t *testing.T) {
	enforcer := mocks.NewMockCasbinEnforcer()
	svc := NewPolicyServiceWithEnforcer(enforcer)

	if err := svc.AddPolicy("role_operator", "/admin/*", "GET"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemovePolicy("role_operator", "/admin/*", "GET"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	policies := svc.GetPolicies()
	for _, p := range policies {
		if len(p) >= 1 && p[0] == "role_operator" {
			t.Errorf("expected the policy removed, still present: %v", p)
		}
	}
}
