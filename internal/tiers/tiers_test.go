package tiers

import (
	"testing"

	"warden/internal/config"
)

func testRegistry() *Registry {
	return NewRegistry(config.Config{
		StaffRoleID: "staff",
		AdminRoleID: "admin",
		Tiers: []config.TierConfig{
			{Name: "pups", RoleID: "r-pups", ManagerRoleID: "m-pups"},
			{Name: "pugs", RoleID: "r-pugs", TrialRoleID: "r-pugs-trial", ManagerRoleID: "m-pugs"},
			{Name: "premium", RoleID: "r-premium", ManagerRoleID: "m-premium"},
		},
	})
}

func TestResolveManagerHierarchy(t *testing.T) {
	registry := testRegistry()

	caps := registry.Resolve([]string{"m-pugs"})
	if !caps.CanManage("pups") || !caps.CanManage("pugs") {
		t.Fatalf("pugs manager should manage pups and pugs")
	}
	if caps.CanManage("premium") {
		t.Fatalf("pugs manager must not manage premium")
	}

	caps = registry.Resolve([]string{"m-premium"})
	for _, tier := range []string{"pups", "pugs", "premium"} {
		if !caps.CanManage(tier) {
			t.Fatalf("premium manager should manage %s", tier)
		}
	}

	caps = registry.Resolve([]string{"r-pups"})
	if caps.ManagesAny() {
		t.Fatalf("plain member must not manage any tier")
	}
}

func TestResolveStaffAndAdmin(t *testing.T) {
	registry := testRegistry()

	caps := registry.Resolve([]string{"staff"})
	if !caps.Staff || caps.Admin {
		t.Fatalf("expected staff only, got staff=%t admin=%t", caps.Staff, caps.Admin)
	}
	caps = registry.Resolve([]string{"admin"})
	if caps.Staff || !caps.Admin {
		t.Fatalf("expected admin only, got staff=%t admin=%t", caps.Staff, caps.Admin)
	}
}

func TestEligibleVoter(t *testing.T) {
	registry := testRegistry()

	if !registry.EligibleVoter([]string{"r-pugs"}) {
		t.Fatalf("tier role holder should be eligible")
	}
	if registry.EligibleVoter([]string{"staff", "m-pups"}) {
		t.Fatalf("manager without a tier role should not be eligible")
	}
}

func TestPromotableFiltersByCapabilityAndHeldRoles(t *testing.T) {
	registry := testRegistry()

	caps := registry.Resolve([]string{"m-pugs"})
	options := registry.Promotable(caps, []string{"r-pups"})

	var roleIDs []string
	for _, opt := range options {
		roleIDs = append(roleIDs, opt.RoleID)
	}
	if len(roleIDs) != 2 || roleIDs[0] != "r-pugs-trial" || roleIDs[1] != "r-pugs" {
		t.Fatalf("expected pugs trial and pugs, got %v", roleIDs)
	}

	caps = registry.Resolve([]string{"m-premium"})
	options = registry.Promotable(caps, nil)
	if len(options) != 4 {
		t.Fatalf("premium manager with fresh target should see 4 options, got %d", len(options))
	}
}
