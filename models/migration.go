package models

import (
	"log"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{},
		&Account{},
		&Customer{}, &Supplier{}, &Territory{},
		&Item{}, &CostCenter{},
		&SalesInvoice{}, &SalesInvoiceDetail{},
		&PurchaseInvoice{}, &PurchaseInvoiceDetail{},
		&PaymentEntry{}, &PaymentEntryReference{},
		&JournalEntry{}, &JournalEntryLine{},
		&SourceConnection{}, &MigrationRun{}, &MigrationError{},
		&PendingRequest{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
