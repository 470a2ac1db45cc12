// Package ledger owns every mutation of a user's token balance.
//
// Debits and credits run as single conditional UPDATEs inside a database
// transaction, so concurrent calls for the same user serialize in the
// database and a debit can never drive the balance negative.
package ledger

import (
	"errors"

	"ml_system/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// Credit amounts accepted per purchase.
const (
	MinCredit = 1
	MaxCredit = 100
)

// Sentinel errors.
var (
	ErrInsufficientTokens = errors.New("ledger: insufficient token balance")
	ErrInvalidAmount      = errors.New("ledger: amount must be between 1 and 100")
	ErrUserNotFound       = errors.New("ledger: user not found")
)

// Service exposes atomic token operations backed by the users table.
type Service struct {
	db *gorm.DB
}

// New creates a ledger service over the given database handle.
func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Debit removes cost tokens from the user's balance. The balance check and
// the decrement are one conditional UPDATE: zero rows affected for an
// existing user means the balance was too low.
func (s *Service) Debit(userID uint, cost int64) error {
	if cost <= 0 {
		return ErrInvalidAmount
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).
			Where("id = ? AND token_balance >= ?", userID, cost).
			Update("token_balance", gorm.Expr("token_balance - ?", cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientTokens
		}
		return nil
	})
}

// Credit adds amount tokens to the user's balance. Amounts outside
// [MinCredit, MaxCredit] are rejected with ErrInvalidAmount.
func (s *Service) Credit(userID uint, amount int64) error {
	if amount < MinCredit || amount > MaxCredit {
		return ErrInvalidAmount
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).
			Where("id = ?", userID).
			Update("token_balance", gorm.Expr("token_balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// Balance returns the user's current token balance.
func (s *Service) Balance(userID uint) (int64, error) {
	var user domain.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.TokenBalance, nil
}
