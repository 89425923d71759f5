package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/migration"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// coa-import imports and classifies the e-boekhouden chart of accounts
// without running a full migration. Safe to re-run; existing accounts are
// matched by their external code and skipped.
func main() {
	companyID := flag.String("company-id", "", "Required: company id")
	apiToken := flag.String("api-token", "", "REST API token (overrides the stored connection)")
	username := flag.String("username", "", "SOAP username")
	code1 := flag.String("security-code-1", "", "SOAP security code 1")
	code2 := flag.String("security-code-2", "", "SOAP security code 2")
	clear := flag.Bool("clear", false, "Delete previously imported accounts first (only safe before documents exist)")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	ctx := utils.SetCompanyIdInContext(context.Background(), *companyID)

	source, err := sourceFromFlagsOrConnection(ctx, *apiToken, *username, *code1, *code2)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *clear {
		removed, err := models.DeleteImportedAccounts(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to clear imported accounts:", err)
			os.Exit(1)
		}
		fmt.Printf("cleared %d previously imported accounts\n", removed)
	}

	result, err := migration.ImportChartOfAccounts(ctx, source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "chart of accounts import failed:", err)
		os.Exit(1)
	}
	fmt.Printf("chart of accounts imported: created=%d skipped=%d groups=%d\n",
		result.Created, result.Skipped, result.Groups)
}

func sourceFromFlagsOrConnection(ctx context.Context, apiToken, username, code1, code2 string) (eboekhouden.Source, error) {
	if apiToken != "" || username != "" {
		return eboekhouden.NewSource(map[string]string{
			"api_token":       apiToken,
			"username":        username,
			"security_code_1": code1,
			"security_code_2": code2,
		})
	}
	conn, err := models.GetActiveSourceConnection(ctx, models.SourceProviderEBoekhouden)
	if err != nil {
		return nil, fmt.Errorf("no credentials given and no active connection: %w", err)
	}
	settings, err := migration.ConnectionSettings(conn)
	if err != nil {
		return nil, err
	}
	return eboekhouden.NewSource(settings)
}
