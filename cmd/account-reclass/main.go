package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/migration"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// account-reclass runs the pre-migration account fixes standalone: promote
// keyword-matched Receivable/Payable/Tax accounts that were imported under a
// generic type, and convert cost-center parents into groups. The same fixes
// run automatically at the start of every migration run.
func main() {
	companyID := flag.String("company-id", "", "Required: company id")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	ctx := utils.SetCompanyIdInContext(context.Background(), *companyID)

	if err := migration.RunPreFixes(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "account reclassification failed:", err)
		os.Exit(1)
	}
	fmt.Println("account reclassification complete")
}
