package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-core/internal/services"
	"casino-core/internal/store"
)

// respondError maps the service error taxonomy onto HTTP statuses. A
// CriticalInconsistency surfaces its support reference so the client has
// something to quote; the cause stays in the server log.
func respondError(c *gin.Context, err error) {
	var crit *services.CriticalInconsistency
	if errors.As(err, &crit) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal inconsistency, contact support",
			"ref":   crit.Ref,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidMode),
		errors.Is(err, services.ErrInvalidMines),
		errors.Is(err, services.ErrInvalidPosition),
		errors.Is(err, services.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrNoSession),
		errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrSessionExists),
		errors.Is(err, services.ErrWrongPhase),
		errors.Is(err, services.ErrAlreadyCashedOut),
		errors.Is(err, services.ErrAlreadyRevealed),
		errors.Is(err, services.ErrNothingRevealed),
		errors.Is(err, services.ErrNotYourTurn),
		errors.Is(err, services.ErrActionNotAllowed),
		errors.Is(err, services.ErrTableFull),
		errors.Is(err, services.ErrNotSeated),
		errors.Is(err, services.ErrDepositUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrExternalService):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
