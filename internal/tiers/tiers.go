// Package tiers resolves member roles into workflow capabilities. Every
// handler that gates on roles goes through Resolve so the mapping lives in
// exactly one place.
package tiers

import "warden/internal/config"

// Tier is one community level. Tiers are ordered lowest first; holding a
// manager role grants management over that tier and every tier below it.
type Tier struct {
	Name          string
	RoleID        string
	TrialRoleID   string
	ManagerRoleID string
	VoteChannel   string
	VouchChannel  string
}

type Registry struct {
	tiers       []Tier
	staffRoleID string
	adminRoleID string
}

// Capabilities is what a member is allowed to do, derived from their roles.
type Capabilities struct {
	Staff  bool
	Admin  bool
	manage map[string]bool
}

func NewRegistry(cfg config.Config) *Registry {
	r := &Registry{
		staffRoleID: cfg.StaffRoleID,
		adminRoleID: cfg.AdminRoleID,
	}
	for _, tc := range cfg.Tiers {
		r.tiers = append(r.tiers, Tier{
			Name:          tc.Name,
			RoleID:        tc.RoleID,
			TrialRoleID:   tc.TrialRoleID,
			ManagerRoleID: tc.ManagerRoleID,
			VoteChannel:   tc.VoteChannel,
			VouchChannel:  tc.VouchChannel,
		})
	}
	return r
}

func (r *Registry) Tiers() []Tier {
	return r.tiers
}

func (r *Registry) Tier(name string) (Tier, bool) {
	for _, tier := range r.tiers {
		if tier.Name == name {
			return tier, true
		}
	}
	return Tier{}, false
}

func (r *Registry) Resolve(roleIDs []string) Capabilities {
	held := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = struct{}{}
	}

	caps := Capabilities{manage: make(map[string]bool, len(r.tiers))}
	if _, ok := held[r.staffRoleID]; ok && r.staffRoleID != "" {
		caps.Staff = true
	}
	if _, ok := held[r.adminRoleID]; ok && r.adminRoleID != "" {
		caps.Admin = true
	}

	// Highest manager role held determines reach downward.
	top := -1
	for i, tier := range r.tiers {
		if tier.ManagerRoleID == "" {
			continue
		}
		if _, ok := held[tier.ManagerRoleID]; ok {
			top = i
		}
	}
	for i, tier := range r.tiers {
		caps.manage[tier.Name] = top >= i
	}
	return caps
}

func (c Capabilities) CanManage(tier string) bool {
	return c.manage[tier]
}

func (c Capabilities) ManagesAny() bool {
	for _, ok := range c.manage {
		if ok {
			return true
		}
	}
	return false
}

// EligibleVoter reports whether the member holds any tier role, which is the
// voting requirement for promotion polls.
func (r *Registry) EligibleVoter(roleIDs []string) bool {
	held := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = struct{}{}
	}
	for _, tier := range r.tiers {
		if tier.RoleID == "" {
			continue
		}
		if _, ok := held[tier.RoleID]; ok {
			return true
		}
	}
	return false
}

// RoleOption is one grantable role for the upgrade flow.
type RoleOption struct {
	Label  string
	RoleID string
}

// Promotable lists the tier roles the caller may grant that the target does
// not already hold. Trial roles count as grantable steps of their tier.
func (r *Registry) Promotable(caps Capabilities, targetRoleIDs []string) []RoleOption {
	held := make(map[string]struct{}, len(targetRoleIDs))
	for _, id := range targetRoleIDs {
		held[id] = struct{}{}
	}

	var options []RoleOption
	for _, tier := range r.tiers {
		if !caps.CanManage(tier.Name) {
			continue
		}
		if tier.TrialRoleID != "" {
			if _, ok := held[tier.TrialRoleID]; !ok {
				options = append(options, RoleOption{Label: tier.Name + " (trial)", RoleID: tier.TrialRoleID})
			}
		}
		if tier.RoleID != "" {
			if _, ok := held[tier.RoleID]; !ok {
				options = append(options, RoleOption{Label: tier.Name, RoleID: tier.RoleID})
			}
		}
	}
	return options
}
