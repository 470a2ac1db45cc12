package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"regexp"   // Credit card format check

	"ml_system/internal/ledger" // Token ledger

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Request struct for token purchase
type AddTokensRequest struct {
	Amount     int64  `json:"amount" binding:"required"`      // Tokens to add (1-100)
	CreditCard string `json:"credit_card" binding:"required"` // Simulated payment card number
}

// isValidCardNumber checks the simulated card number format (12-19 digits)
func isValidCardNumber(card string) bool {
	matched, _ := regexp.MatchString(`^[0-9]{12,19}$`, card) // Digits only
	return matched                                           // Return whether it matched
}

// GetTokensHandler returns the authenticated user's token balance
func GetTokensHandler(ledgerSvc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Read the balance through the ledger
		balance, err := ledgerSvc.Balance(userID.(uint))
		if err != nil {
			// If user record is missing, return not found
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		// Return the balance
		c.JSON(http.StatusOK, gin.H{"tokens": balance})
	}
}

// AddTokensHandler credits tokens after a simulated card payment
func AddTokensHandler(ledgerSvc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req AddTokensRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Validate the card number format (no real payment is made)
		if !isValidCardNumber(req.CreditCard) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credit card number"})
			return
		}
		// Credit through the ledger; amount bounds are enforced there
		if err := ledgerSvc.Credit(userID.(uint), req.Amount); err != nil {
			if errors.Is(err, ledger.ErrInvalidAmount) {
				// Amount outside 1-100
				c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be between 1 and 100"})
				return
			}
			if errors.Is(err, ledger.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			// Any other failure is internal
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add tokens"})
			return
		}
		// Read back the new balance for the response
		balance, err := ledgerSvc.Balance(userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read balance"})
			return
		}
		// Log the purchase with the card number masked
		logrus.WithFields(logrus.Fields{
			"user_id":          userID,                                 // User ID
			"amount":           req.Amount,                             // Tokens added
			"new_balance":      balance,                                // Balance after credit
			"credit_card_last": req.CreditCard[len(req.CreditCard)-4:], // Last 4 digits only
		}).Info("Tokens purchased") // Log token purchase
		// Return confirmation with the new balance
		c.JSON(http.StatusOK, gin.H{
			"message":      "Tokens added successfully", // Confirmation message
			"tokens_added": req.Amount,                  // Tokens added
			"new_balance":  balance,                     // New balance
		})
	}
}
