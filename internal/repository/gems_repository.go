package repository

import (
	"github.com/strumly/practice-engine/internal/models"
)

// GemsRepository handles the append-only gems ledger.
type GemsRepository struct {
	db *DB
}

// NewGemsRepository creates a new gems repository.
func NewGemsRepository(db *DB) *GemsRepository {
	return &GemsRepository{db: db}
}

// Record appends one ledger entry. Entries are never updated or deleted.
func (r *GemsRepository) Record(userID uint, txType string, amount int, reference, description string) error {
	entry := models.GemsTransaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	}
	return r.db.Create(&entry).Error
}

// ListByUser returns a user's ledger entries, newest first.
func (r *GemsRepository) ListByUser(userID uint) ([]models.GemsTransaction, error) {
	var entries []models.GemsTransaction
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// BalanceFromLedger folds the ledger into a net balance (earned minus
// spent). The stats row's gems_balance should reconcile to this.
func (r *GemsRepository) BalanceFromLedger(userID uint) (int, error) {
	entries, err := r.ListByUser(userID)
	if err != nil {
		return 0, err
	}
	balance := 0
	for _, e := range entries {
		switch e.Type {
		case models.GemsTxEarned:
			balance += e.Amount
		case models.GemsTxSpent:
			balance -= e.Amount
		}
	}
	return balance, nil
}
