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

// relations-import lands the e-boekhouden relation list as customers and/or
// suppliers ahead of a migration run. Existing parties are matched by their
// external relation code and left untouched.
func main() {
	companyID := flag.String("company-id", "", "Required: company id")
	asCustomers := flag.Bool("customers", true, "Import relations as customers")
	asSuppliers := flag.Bool("suppliers", false, "Import relations as suppliers")
	apiToken := flag.String("api-token", "", "REST API token (overrides the stored connection)")
	username := flag.String("username", "", "SOAP username")
	code1 := flag.String("security-code-1", "", "SOAP security code 1")
	code2 := flag.String("security-code-2", "", "SOAP security code 2")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}
	if !*asCustomers && !*asSuppliers {
		fmt.Fprintln(os.Stderr, "at least one of --customers / --suppliers must be set")
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

	result, err := migration.ImportRelations(ctx, source, *asCustomers, *asSuppliers)
	if err != nil {
		fmt.Fprintln(os.Stderr, "relations import failed:", err)
		os.Exit(1)
	}
	fmt.Printf("relations imported: customers=%d suppliers=%d skipped=%d\n",
		result.Customers, result.Suppliers, result.Skipped)
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
