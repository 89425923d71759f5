package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/appctx"
)

var (
	ContextKeyCompanyId     = appctx.ContextKeyCompanyId
	ContextKeyRunId         = appctx.ContextKeyRunId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyDryRun        = appctx.ContextKeyDryRun
)

func GetCompanyIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCompanyId)
}

func SetCompanyIdInContext(ctx context.Context, companyId string) context.Context {
	return appctx.Set(ctx, ContextKeyCompanyId, companyId)
}

func GetRunIdFromContext(ctx context.Context) (uint, bool) {
	return appctx.GetUint(ctx, ContextKeyRunId)
}

func SetRunIdInContext(ctx context.Context, runId uint) context.Context {
	return appctx.Set(ctx, ContextKeyRunId, runId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetDryRunFromContext(ctx context.Context) bool {
	v, ok := appctx.GetBool(ctx, ContextKeyDryRun)
	return ok && v
}

func SetDryRunInContext(ctx context.Context, dryRun bool) context.Context {
	return appctx.Set(ctx, ContextKeyDryRun, dryRun)
}
