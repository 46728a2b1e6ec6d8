package db

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to postgres. TranslateError is on so unique-constraint
// violations surface as gorm.ErrDuplicatedKey, which the dedup ledger
// relies on for its exactly-once insert.
func Open(dsn string) *gorm.DB {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("[db] open: %v", err)
	}
	return gdb
}
