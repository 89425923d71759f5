package models

import (
	"context"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

func TestCreatePendingRequest_RequiresCompany(t *testing.T) {
	if _, err := CreatePendingRequest(context.Background(), PendingRequestKindBankDetails, nil, ""); err == nil {
		t.Fatal("expected an error without a company id")
	}
}

func TestCreatePendingRequest_DryRun(t *testing.T) {
	ctx := utils.SetCompanyIdInContext(context.Background(), "acme")
	ctx = utils.SetRunIdInContext(ctx, 7)
	ctx = utils.SetDryRunInContext(ctx, true)

	payload := map[string]interface{}{"party_name": "Jansen"}
	request, err := CreatePendingRequest(ctx, PendingRequestKindBankDetails, payload, "confirm bank details")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.CompanyId != "acme" || request.RunId != 7 {
		t.Fatalf("request not scoped to the run: %+v", request)
	}
	if request.Kind != PendingRequestKindBankDetails || request.Status != PendingRequestStatusOpen {
		t.Fatalf("wrong kind or status: %+v", request)
	}
	if !strings.Contains(string(request.PayloadJSON), "Jansen") {
		t.Fatalf("payload not serialized: %s", request.PayloadJSON)
	}
}
