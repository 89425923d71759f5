package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/migration"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// opening-balance-derive computes a trial balance from all upstream
// mutations dated on or before the cutoff and writes an Excel review sheet.
// With --book it also posts the derived balance as the opening journal on
// January 1 of the cutoff year; out-of-balance derivations are never booked.
func main() {
	companyID := flag.String("company-id", "", "Required: company id")
	cutoffArg := flag.String("cutoff", "", "Required: cutoff date (YYYY-MM-DD); mutations after it are excluded")
	outPath := flag.String("out", "trial-balance.xlsx", "Path of the review workbook")
	book := flag.Bool("book", false, "Post the derived opening balance journal")
	apiToken := flag.String("api-token", "", "REST API token (overrides the stored connection)")
	username := flag.String("username", "", "SOAP username")
	code1 := flag.String("security-code-1", "", "SOAP security code 1")
	code2 := flag.String("security-code-2", "", "SOAP security code 2")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}
	cutoff, err := time.Parse("2006-01-02", strings.TrimSpace(*cutoffArg))
	if err != nil {
		fmt.Fprintln(os.Stderr, "--cutoff must be YYYY-MM-DD")
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

	mutations, err := source.FetchMutations(ctx, nil, &cutoff)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch failed:", err)
		os.Exit(1)
	}

	rows := migration.ComputeTrialBalance(mutations, cutoff)
	if len(rows) == 0 {
		fmt.Println("no balances up to the cutoff; nothing to derive")
		return
	}

	if err := migration.WriteTrialBalanceWorkbook(rows, cutoff, *outPath); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write workbook:", err)
		os.Exit(1)
	}
	fmt.Printf("trial balance written: %s (%d accounts)\n", *outPath, len(rows))

	if !*book {
		return
	}

	relations, err := source.FetchRelations(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch relations failed:", err)
		os.Exit(1)
	}
	resolver, err := migration.NewResolver(ctx, relations)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	yearStart := time.Date(cutoff.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	journal, err := resolver.BookDerivedOpeningBalance(ctx, rows, yearStart)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opening balance not booked:", err)
		os.Exit(2)
	}
	fmt.Printf("opening balance booked: journal %s (%d lines)\n", journal.JournalNumber, len(journal.Lines))
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
