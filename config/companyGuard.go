package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanyGuardPlugin scopes queries/updates/deletes to the request's
// company_id when the model has a company_id column. Migration runs for
// different administrations share one target store; this keeps a run from
// ever touching another company's documents.
//
// NOTE: Raw SQL bypasses the guard and must include company_id manually.
type CompanyGuardPlugin struct{}

func NewCompanyGuardPlugin() *CompanyGuardPlugin { return &CompanyGuardPlugin{} }

func (p *CompanyGuardPlugin) Name() string { return "company_guard" }

func (p *CompanyGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("company_guard:query", companyGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("company_guard:row", companyGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("company_guard:update", companyGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("company_guard:delete", companyGuardCallback); err != nil {
		return err
	}
	return nil
}

func companyGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	companyID := companyIdFromContext(ctx)
	if companyID == "" {
		return
	}

	// Only apply if the current model/table includes a company_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasCompanyID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "company_id") {
			hasCompanyID = true
			break
		}
	}
	if !hasCompanyID {
		return
	}

	// Don't duplicate an explicit company filter.
	if whereHasCompanyID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "company_id"}, Value: companyID},
		},
	})
}

func companyIdFromContext(ctx context.Context) string {
	v, ok := appctx.GetString(ctx, appctx.ContextKeyCompanyId)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func whereHasCompanyID(c clause.Clause) bool {
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if exprMentionsCompanyID(expr) {
			return true
		}
	}
	return false
}

func exprMentionsCompanyID(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok && strings.EqualFold(col.Name, "company_id") {
			return true
		}
		if col, ok := e.Column.(string); ok && strings.Contains(strings.ToLower(col), "company_id") {
			return true
		}
	case clause.Expr:
		if strings.Contains(strings.ToLower(e.SQL), "company_id") {
			return true
		}
	case clause.AndConditions:
		for _, sub := range e.Exprs {
			if exprMentionsCompanyID(sub) {
				return true
			}
		}
	case clause.OrConditions:
		for _, sub := range e.Exprs {
			if exprMentionsCompanyID(sub) {
				return true
			}
		}
	}
	return false
}
