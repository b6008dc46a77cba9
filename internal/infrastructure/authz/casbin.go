package authz

import (
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// CasbinAuthorizer checks role permissions with an in-memory RBAC enforcer.
type CasbinAuthorizer struct {
	enforcer *casbin.Enforcer
	logger   *slog.Logger
}

var _ ports.Authorizer = (*CasbinAuthorizer)(nil)

// inheritance lists role -> parent role grants.
var inheritance = [][2]domain.Role{
	{domain.RoleModerator, domain.RoleAuthor},
	{domain.RoleAdmin, domain.RoleModerator},
}

func newModel() model.Model {
	m := model.NewModel()
	m.AddDef("r", "r", "sub, act")
	m.AddDef("p", "p", "sub, act")
	m.AddDef("g", "g", "_, _")
	m.AddDef("e", "e", "some(where (p.eft == allow))")
	m.AddDef("m", "m", "g(r.sub, p.sub) && r.act == p.act")
	return m
}

// NewCasbinAuthorizer loads permissions into a fresh enforcer.
func NewCasbinAuthorizer(permissions map[domain.Role][]domain.Action, logger *slog.Logger) (*CasbinAuthorizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e, err := casbin.NewEnforcer(newModel())
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	for role, actions := range permissions {
		for _, action := range actions {
			if _, err := e.AddPolicy(string(role), string(action)); err != nil {
				return nil, fmt.Errorf("add policy %s %s: %w", role, action, err)
			}
		}
	}
	for _, pair := range inheritance {
		if _, err := e.AddGroupingPolicy(string(pair[0]), string(pair[1])); err != nil {
			return nil, fmt.Errorf("add role %s: %w", pair[0], err)
		}
	}

	return &CasbinAuthorizer{enforcer: e, logger: logger}, nil
}

// Allowed implements ports.Authorizer.
func (a *CasbinAuthorizer) Allowed(actor domain.Actor, action domain.Action) bool {
	if actor.Role == "" {
		return false
	}
	ok, err := a.enforcer.Enforce(string(actor.Role), string(action))
	if err != nil {
		a.logger.Error("authorization check failed", "role", actor.Role, "action", action, "error", err)
		return false
	}
	return ok
}
