package migration

import (
	"testing"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
)

func TestReclassReviewPayload(t *testing.T) {
	account := &models.Account{
		ID:           42,
		Name:         "Debiteuren",
		ExternalCode: "1300",
		AccountType:  models.AccountTypeCurrentAsset,
	}

	payload := reclassReviewPayload(account, models.AccountTypeReceivable)
	if payload["account_id"] != 42 || payload["external_code"] != "1300" || payload["name"] != "Debiteuren" {
		t.Fatalf("wrong account identity: %+v", payload)
	}
	if payload["from"] != string(models.AccountTypeCurrentAsset) || payload["to"] != string(models.AccountTypeReceivable) {
		t.Fatalf("wrong transition: %+v", payload)
	}
}
