package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// RunPayload identifies one queued migration run. It travels over Pub/Sub,
// so every field must survive JSON round trips.
type RunPayload struct {
	RunId        uint   `json:"run_id"`
	CompanyId    string `json:"company_id"`
	ConnectionId uint   `json:"connection_id"`
}

const runLockTTL = 10 * time.Minute

// ProcessMigrationRun executes one migration run end to end: fetch, partition,
// dispatch builders in a fixed order, persist stats and error records, close
// the run row. Builder failures never abort the run; only fetch and setup
// failures mark the whole run failed. A non-nil return has the message
// redelivered, so anything already terminal returns nil.
func ProcessMigrationRun(ctx context.Context, payload RunPayload) error {
	logger := config.GetLogger()

	if payload.RunId == 0 || payload.CompanyId == "" {
		logger.WithFields(logrus.Fields{
			"field": "processMigrationRun",
		}).Warn("dropping run payload with missing run_id or company_id")
		return nil
	}

	ctx = utils.SetCompanyIdInContext(ctx, payload.CompanyId)
	ctx = utils.SetRunIdInContext(ctx, payload.RunId)

	run, err := models.GetMigrationRun(ctx, payload.RunId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		logger.WithFields(logrus.Fields{
			"field":  "processMigrationRun",
			"run_id": payload.RunId,
		}).Warn("run row not found; dropping")
		return nil
	}
	if err != nil {
		return err
	}
	switch run.Status {
	case models.MigrationRunStatusSuccess, models.MigrationRunStatusPartial, models.MigrationRunStatusFailed:
		// Redelivered message for a finished run.
		return nil
	}

	// Dry runs exercise the full pipeline but no target documents are
	// written; the run row and its stats are still persisted.
	if run.DryRun {
		ctx = utils.SetDryRunInContext(ctx, true)
	}

	// Best-effort serialization per company. Duplicate creates are still
	// caught by the external-key unique indexes, so a missing lock only
	// costs wasted work, not double documents.
	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker == nil {
		logger.WithFields(logrus.Fields{
			"field":      "processMigrationRun",
			"company_id": payload.CompanyId,
			"run_id":     run.ID,
		}).Warn("redis lock not ready; proceeding without lock")
	} else {
		lock, err = locker.Obtain(ctx, fmt.Sprintf("migration:lock:%s", payload.CompanyId), runLockTTL, nil)
		if err == redislock.ErrNotObtained {
			logger.WithFields(logrus.Fields{
				"field":      "processMigrationRun",
				"company_id": payload.CompanyId,
				"run_id":     run.ID,
			}).Warn("another run holds the company lock; requeueing")
			return fmt.Errorf("company %s is locked by another run", payload.CompanyId)
		} else if err != nil {
			logger.WithFields(logrus.Fields{
				"field":      "processMigrationRun",
				"company_id": payload.CompanyId,
				"run_id":     run.ID,
			}).Warn("error obtaining redis lock; proceeding without lock: " + err.Error())
			lock = nil
		}
	}
	defer func() {
		if lock == nil {
			return
		}
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			logger.WithFields(logrus.Fields{
				"field":  "processMigrationRun",
				"run_id": run.ID,
			}).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}()

	started := time.Now()
	db := config.GetDB()
	claim := db.WithContext(ctx).Model(&models.MigrationRun{}).
		Where("id = ? AND company_id = ? AND status = ?", run.ID, payload.CompanyId, models.MigrationRunStatusQueued).
		Updates(map[string]interface{}{
			"status":     models.MigrationRunStatusRunning,
			"started_at": started,
		})
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		// Another worker claimed it between the read and the update.
		return nil
	}

	conn, err := models.GetSourceConnection(ctx, run.ConnectionId)
	if err != nil {
		return failRun(ctx, run, started, "connection_missing", err)
	}
	if conn.Status != models.SourceStatusConnected {
		return failRun(ctx, run, started, "connection_not_connected",
			fmt.Errorf("connection %d has status %q", conn.ID, conn.Status))
	}

	settings, err := ConnectionSettings(conn)
	if err != nil {
		return failRun(ctx, run, started, "bad_settings", err)
	}
	source, err := eboekhouden.NewSource(settings)
	if err != nil {
		return failRun(ctx, run, started, "bad_settings", err)
	}

	if err := models.MarkConnectionRunStarted(ctx, conn.ID, started); err != nil {
		logger.WithFields(logrus.Fields{
			"field":         "processMigrationRun",
			"connection_id": conn.ID,
		}).Warn("failed to mark connection run started: " + err.Error())
	}

	// Account reclassifications are cheap and make the resolvers pick the
	// right control accounts, so they run before every migration.
	if err := RunPreFixes(ctx); err != nil {
		logger.WithFields(logrus.Fields{
			"field":  "processMigrationRun",
			"run_id": run.ID,
		}).Warn("pre-run fixes failed: " + err.Error())
	}

	steps := stepsFor(run)
	stats := NewRunStats()

	if steps.coa {
		if run.ClearExistingAccounts {
			removed, err := models.DeleteImportedAccounts(ctx)
			if err != nil {
				return failRun(ctx, run, started, "coa_clear_failed", err)
			}
			logger.WithFields(logrus.Fields{
				"field":   "processMigrationRun",
				"run_id":  run.ID,
				"removed": removed,
			}).Info("cleared previously imported accounts")
		}
		coaResult, err := ImportChartOfAccounts(ctx, source)
		if err != nil {
			return failRun(ctx, run, started, "coa_import_failed", err)
		}
		stats.CreatedN(stepChartOfAccounts, coaResult.Created)
		stats.SkippedN(stepChartOfAccounts, "already_imported", coaResult.Skipped)
	}

	if steps.relations {
		partyResult, err := ImportRelations(ctx, source, true, true)
		if err != nil {
			return failRun(ctx, run, started, "relations_import_failed", err)
		}
		stats.CreatedN(stepRelations, partyResult.Customers+partyResult.Suppliers)
		stats.SkippedN(stepRelations, "no_relation_code", partyResult.Skipped)
	}

	if steps.transactions {
		from, to := dateWindow(settings)
		mutations, err := source.FetchMutations(ctx, from, to)
		if err != nil {
			return failRun(ctx, run, started, "fetch_failed", err)
		}
		relations, err := source.FetchRelations(ctx)
		if err != nil {
			return failRun(ctx, run, started, "fetch_failed", err)
		}

		resolver, err := NewResolver(ctx, relations)
		if err != nil {
			return failRun(ctx, run, started, "resolver_init_failed", err)
		}

		partitions, unknown := PartitionByKind(mutations)
		for i, m := range unknown {
			if i < maxErrorSamples {
				logger.WithFields(logrus.Fields{
					"field":       "processMigrationRun",
					"run_id":      run.ID,
					"external_id": m.ExternalId,
					"kind":        m.Kind,
				}).Warn("unknown mutation kind")
			}
			stats.Failed("unknown", "unknown_kind", fmt.Sprintf("%s: kind %q", m.ExternalId, m.Kind))
		}

		for _, kind := range dispatchOrder {
			if steps.kinds != nil && !steps.kinds[kind] {
				continue
			}
			batch := partitions[kind]

			if kind == KindOpeningBalance {
				if len(batch) == 0 {
					continue
				}
				record(stats, kind, "opening-balance", resolver.buildOpeningBalance(ctx, batch))
				continue
			}

			for _, m := range batch {
				record(stats, kind, m.ExternalId, dispatch(ctx, resolver, kind, m))
			}
		}
	}

	if err := stats.Persist(ctx, run.ID, payload.CompanyId); err != nil {
		logger.WithFields(logrus.Fields{
			"field":  "processMigrationRun",
			"run_id": run.ID,
		}).Warn("failed to persist error records: " + err.Error())
	}

	finished := time.Now()
	status := stats.Status()
	statsJSON, err := utils.MarshalToJSON(stats)
	if err != nil {
		statsJSON = "{}"
	}
	err = db.WithContext(ctx).Model(&models.MigrationRun{}).
		Where("id = ? AND company_id = ?", run.ID, payload.CompanyId).
		Updates(map[string]interface{}{
			"status":        status,
			"finished_at":   finished,
			"duration_ms":   finished.Sub(started).Milliseconds(),
			"records_built": stats.TotalCreated(),
			"error_count":   stats.TotalFailed(),
			"stats_json":    []byte(statsJSON),
		}).Error
	if err != nil {
		return err
	}

	if status == models.MigrationRunStatusSuccess && !run.DryRun {
		if err := models.MarkConnectionRunSucceeded(ctx, conn.ID, finished); err != nil {
			logger.WithFields(logrus.Fields{
				"field":         "processMigrationRun",
				"connection_id": conn.ID,
			}).Warn("failed to mark connection run succeeded: " + err.Error())
		}
	}

	logger.WithFields(logrus.Fields{
		"field":         "processMigrationRun",
		"run_id":        run.ID,
		"company_id":    payload.CompanyId,
		"status":        status,
		"records_built": stats.TotalCreated(),
		"error_count":   stats.TotalFailed(),
		"duration_ms":   finished.Sub(started).Milliseconds(),
	}).Info("migration run finished")
	return nil
}

func dispatch(ctx context.Context, r *Resolver, kind string, m eboekhouden.Mutation) buildResult {
	switch kind {
	case KindSalesInvoice:
		return r.buildSalesInvoice(ctx, m)
	case KindPurchaseInvoice:
		return r.buildPurchaseInvoice(ctx, m)
	case KindCustomerPayment:
		return r.buildCustomerPayment(ctx, m)
	case KindSupplierPayment:
		return r.buildSupplierPayment(ctx, m)
	case KindMoneyReceived, KindMoneySpent:
		return r.buildBankJournal(ctx, kind, m)
	case KindMemorial:
		return r.buildMemorialJournal(ctx, m)
	default:
		return failed(fmt.Errorf("no builder registered for kind %q", kind))
	}
}

func record(stats *RunStats, kind string, externalId string, res buildResult) {
	switch res.status {
	case buildCreated:
		stats.Created(kind)
	case buildSkipped:
		stats.Skipped(kind, res.reason)
	case buildFailed:
		stats.Failed(kind, failureReason(res.err), fmt.Sprintf("%s: %s", externalId, res.err.Error()))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, utils.ErrorUnresolvableReference):
		return "unresolvable_reference"
	case errors.Is(err, utils.ErrorUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "build_failed"
	}
}

// failRun closes the run row after a setup or fetch failure and records a
// single error row carrying the cause. Returns nil so the message is acked;
// retrying a broken connection config would loop forever.
func failRun(ctx context.Context, run *models.MigrationRun, started time.Time, code string, cause error) error {
	logger := config.GetLogger()
	db := config.GetDB()
	finished := time.Now()

	errRow := models.MigrationError{
		RunId:     run.ID,
		CompanyId: run.CompanyId,
		ErrorCode: code,
		Message:   cause.Error(),
		Retryable: errors.Is(cause, utils.ErrorUpstreamUnavailable),
	}
	if err := db.WithContext(ctx).Create(&errRow).Error; err != nil {
		logger.WithFields(logrus.Fields{
			"field":  "processMigrationRun",
			"run_id": run.ID,
		}).Warn("failed to record run error: " + err.Error())
	}

	err := db.WithContext(ctx).Model(&models.MigrationRun{}).
		Where("id = ? AND company_id = ?", run.ID, run.CompanyId).
		Updates(map[string]interface{}{
			"status":      models.MigrationRunStatusFailed,
			"finished_at": finished,
			"duration_ms": finished.Sub(started).Milliseconds(),
			"error_count": 1,
		}).Error
	if err != nil {
		return err
	}

	config.LogError(logger, "migration", "processMigrationRun", code, map[string]interface{}{
		"run_id":     run.ID,
		"company_id": run.CompanyId,
	}, cause)
	return nil
}

// ConnectionSettings merges the connection's stored settings with the secret
// referenced by auth_secret_ref. Secrets live in the environment, never in
// the settings column.
func ConnectionSettings(conn *models.SourceConnection) (map[string]string, error) {
	settings := map[string]string{}
	if len(conn.SettingsJSON) > 0 {
		if err := json.Unmarshal(conn.SettingsJSON, &settings); err != nil {
			return nil, fmt.Errorf("invalid connection settings: %w", err)
		}
	}
	if conn.AuthSecretRef != "" {
		if secret := os.Getenv(conn.AuthSecretRef); secret != "" {
			switch conn.AuthType {
			case "soap":
				settings["security_code_1"] = secret
			default:
				settings["api_token"] = secret
			}
		}
	}
	return settings, nil
}

// Step names used as stat kinds for the non-transaction steps.
const (
	stepChartOfAccounts = "chart_of_accounts"
	stepRelations       = "relations"
)

type runSteps struct {
	coa          bool
	relations    bool
	transactions bool
	// kinds filters the transaction step; nil means every kind.
	kinds map[string]bool
}

func allSteps() runSteps {
	return runSteps{coa: true, relations: true, transactions: true}
}

// stepsFor reads the run's module list. Tokens name either a whole step
// ("coa", "relations", "transactions") or a single mutation kind, which
// implies the transaction step with a kind filter. An empty or unusable
// list means a full run.
func stepsFor(run *models.MigrationRun) runSteps {
	if len(run.ModulesJSON) == 0 {
		return allSteps()
	}
	var modules []string
	if err := json.Unmarshal(run.ModulesJSON, &modules); err != nil || len(modules) == 0 {
		return allSteps()
	}

	steps := runSteps{}
	kinds := map[string]bool{}
	for _, module := range modules {
		switch strings.ToLower(strings.TrimSpace(module)) {
		case "coa", "accounts", "chart_of_accounts":
			steps.coa = true
		case "relations", "parties":
			steps.relations = true
		case "transactions", "mutations":
			steps.transactions = true
		default:
			if kind, ok := NormalizeKind(module); ok {
				steps.transactions = true
				kinds[kind] = true
			}
		}
	}
	if len(kinds) > 0 {
		steps.kinds = kinds
	}
	if !steps.coa && !steps.relations && !steps.transactions {
		return allSteps()
	}
	return steps
}

func dateWindow(settings map[string]string) (*time.Time, *time.Time) {
	var from, to *time.Time
	if raw := settings["from_date"]; raw != "" {
		if t := eboekhouden.ParseDate(raw); !t.IsZero() {
			from = &t
		}
	}
	if raw := settings["to_date"]; raw != "" {
		if t := eboekhouden.ParseDate(raw); !t.IsZero() {
			to = &t
		}
	}
	return from, to
}
