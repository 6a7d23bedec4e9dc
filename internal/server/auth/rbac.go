package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"

	"github.com/brooklin-io/taskassign/pkg/logger"
)

// rbacModel is an RBAC-with-roles model: a subject is granted an action on
// an object either directly or through a role it belongs to.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Resources gated by the enforcer.
const (
	ResourceRebalance = "rebalance"
	ResourceMove      = "move"
	ResourceAssignment = "assignment"
)

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
)

// Built-in roles.
const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Enforcer wraps a Casbin enforcer with the roles and resources this
// server's endpoints check.
type Enforcer struct {
	enforcer *casbin.Enforcer
	log      logger.Logger
}

// NewEnforcer builds an enforcer against the embedded RBAC model and the
// given policy adapter (a database-backed adapter such as gorm-adapter for
// a deployment whose policy changes at runtime). adapter may be nil, in
// which case policy lives in memory only - used in tests and for a
// single-process deployment with no persistence requirement.
func NewEnforcer(adapter persist.Adapter, log logger.Logger) (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parse rbac model: %w", err)
	}

	var e *casbin.Enforcer
	if adapter != nil {
		e, err = casbin.NewEnforcer(m, adapter)
	} else {
		e, err = casbin.NewEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("build enforcer: %w", err)
	}
	if adapter != nil {
		if err := e.LoadPolicy(); err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		e.EnableAutoSave(true)
	}

	enforcer := &Enforcer{enforcer: e, log: log}
	if err := enforcer.ensureDefaultPolicy(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// ensureDefaultPolicy grants the built-in operator role write access and
// viewer role read access to every resource this server exposes, if those
// policies are not already present. Safe to call on every startup.
func (e *Enforcer) ensureDefaultPolicy() error {
	resources := []string{ResourceRebalance, ResourceMove, ResourceAssignment}
	for _, res := range resources {
		if _, err := e.enforcer.AddPolicy(RoleOperator, res, ActionWrite); err != nil {
			return err
		}
		if _, err := e.enforcer.AddPolicy(RoleOperator, res, ActionRead); err != nil {
			return err
		}
		if _, err := e.enforcer.AddPolicy(RoleViewer, res, ActionRead); err != nil {
			return err
		}
	}
	return nil
}

func (e *Enforcer) AssignRole(subject, role string) error {
	_, err := e.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func (e *Enforcer) Check(subject, resource, action string) (bool, error) {
	allowed, err := e.enforcer.Enforce(subject, resource, action)
	if err != nil {
		e.log.Error("rbac check failed", "subject", subject, "resource", resource, "action", action, "error", err)
		return false, err
	}
	return allowed, nil
}
