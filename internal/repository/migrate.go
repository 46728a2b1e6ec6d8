package repository

import (
	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.RawMessage{},
		&domain.MessageFingerprint{},
		&domain.Client{},
		&domain.Booking{},
		&domain.CredentialRecord{},
	)
}
