package audit

import (
	"fmt"

	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/casbin/casbin/v2/persist"

	"github.com/brooklin-io/taskassign/pkg/database"
)

// NewRBACAdapter builds a casbin persist.Adapter backed by the same
// database connection as the audit trail, so RBAC policy changes (role
// grants, revocations) survive a coordinator restart. Pass the result to
// auth.NewEnforcer in place of nil for a production deployment.
func NewRBACAdapter(db *database.DB) (persist.Adapter, error) {
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db.DB, "", "casbin_rule")
	if err != nil {
		return nil, fmt.Errorf("build casbin gorm adapter: %w", err)
	}
	return adapter, nil
}
