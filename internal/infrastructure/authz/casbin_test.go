package authz

import (
	"testing"

	"Encyclopedia/internal/domain"
)

func TestRoleInheritance(t *testing.T) {
	t.Parallel()

	a, err := NewCasbinAuthorizer(domain.Permissions, nil)
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}

	tests := []struct {
		role   domain.Role
		action domain.Action
		want   bool
	}{
		{domain.RoleAuthor, domain.ActionEdit, true},
		{domain.RoleAuthor, domain.ActionModerate, false},
		{domain.RoleAuthor, domain.ActionSkipInfobox, false},
		{domain.RoleModerator, domain.ActionEdit, true},
		{domain.RoleModerator, domain.ActionModerate, true},
		{domain.RoleModerator, domain.ActionEditAICategory, false},
		{domain.RoleAdmin, domain.ActionGenerate, true},
		{domain.RoleAdmin, domain.ActionDelete, true},
		{domain.RoleAdmin, domain.ActionSkipInfobox, true},
		{"guest", domain.ActionEdit, false},
		{"", domain.ActionEdit, false},
	}

	for _, tt := range tests {
		actor := domain.Actor{ID: "u", Role: tt.role}
		if got := a.Allowed(actor, tt.action); got != tt.want {
			t.Errorf("%s %s: got %v want %v", tt.role, tt.action, got, tt.want)
		}
	}
}
