package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/migration"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// migrate drives a full migration run synchronously from the command line,
// without going through Pub/Sub. Useful for initial onboarding and re-runs
// against a test administration.
func main() {
	companyID := flag.String("company-id", "", "Required: company id")
	connectionID := flag.Uint("connection-id", 0, "Source connection id (default: the active e-boekhouden connection)")
	modules := flag.String("modules", "", "Comma-separated steps or kinds to run (default: all)")
	dryRun := flag.Bool("dry-run", false, "Run the full pipeline without writing target documents")
	clearAccounts := flag.Bool("clear-accounts", false, "Delete previously imported accounts before the chart-of-accounts step")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	ctx := utils.SetCompanyIdInContext(context.Background(), *companyID)

	connID := *connectionID
	if connID == 0 {
		conn, err := models.GetActiveSourceConnection(ctx, models.SourceProviderEBoekhouden)
		if err != nil {
			fmt.Fprintln(os.Stderr, "no active e-boekhouden connection:", err)
			os.Exit(1)
		}
		connID = conn.ID
	}

	var moduleList []string
	for _, m := range strings.Split(*modules, ",") {
		if m = strings.TrimSpace(m); m != "" {
			moduleList = append(moduleList, m)
		}
	}

	run, err := models.CreateMigrationRun(ctx, &models.NewMigrationRun{
		ConnectionId:          connID,
		TriggeredBy:           models.MigrationTriggeredSystem,
		Modules:               moduleList,
		DryRun:                *dryRun,
		ClearExistingAccounts: *clearAccounts,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create run:", err)
		os.Exit(1)
	}

	err = migration.ProcessMigrationRun(ctx, migration.RunPayload{
		RunId:        run.ID,
		CompanyId:    *companyID,
		ConnectionId: connID,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "run failed:", err)
		os.Exit(1)
	}

	finished, err := models.GetMigrationRun(ctx, run.ID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to reload run:", err)
		os.Exit(1)
	}

	fmt.Printf("run %d finished: status=%s records_built=%d error_count=%d duration_ms=%d\n",
		finished.ID, finished.Status, finished.RecordsBuilt, finished.ErrorCount, finished.DurationMs)
	if len(finished.StatsJSON) > 0 {
		var pretty map[string]interface{}
		if json.Unmarshal(finished.StatsJSON, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		}
	}
	if finished.Status != models.MigrationRunStatusSuccess {
		os.Exit(2)
	}
}
