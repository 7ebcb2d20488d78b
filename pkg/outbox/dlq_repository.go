package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
)

// Error messages are truncated so one oversized driver error cannot bloat
// the DLQ table.
const maxDLQErrorLen = 1024

// DLQRepository stores outbox rows that exhausted their publish attempts or
// failed terminally. Rows are inspected and replayed by hand.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes a DLQ entry inside the publisher's transaction.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	return message[:maxDLQErrorLen]
}
