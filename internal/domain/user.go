package domain

// User Model
type User struct {
	ID           uint   `gorm:"primaryKey"`         // Primary key
	Username     string `gorm:"unique;not null"`    // Unique username
	Password     string `gorm:"not null"`           // Hashed password
	TokenBalance int64  `gorm:"not null;default:0"` // Consumable token balance, never negative
}
