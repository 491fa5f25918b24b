package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"casino-core/internal/models"
	"casino-core/internal/services"
)

type WalletHandler struct {
	coordinator *services.Coordinator
}

func NewWalletHandler(coordinator *services.Coordinator) *WalletHandler {
	return &WalletHandler{coordinator: coordinator}
}

func (h *WalletHandler) activeMode(c *gin.Context) (models.Mode, bool) {
	mode, err := h.coordinator.ActiveMode(c.Request.Context(), c.GetInt64("account_id"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return mode, true
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.Balance(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": view,
	})
}

func (h *WalletHandler) GetEntries(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil {
		limit = 50
	}

	entries, err := h.coordinator.Entries(c.Request.Context(), accountID, mode, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": entries,
		"count":   len(entries),
	})
}

// SwitchMode flips between the real and demo partitions. Balances never
// cross the boundary.
func (h *WalletHandler) SwitchMode(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.SwitchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.coordinator.SwitchMode(c.Request.Context(), accountID, req.Mode); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"mode":    req.Mode,
	})
}

func (h *WalletHandler) RotateSeed(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.RotateClientSeed(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": view,
	})
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	artifact, err := h.coordinator.Withdraw(c.Request.Context(), accountID, mode, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"withdrawal": artifact,
	})
}

func (h *WalletHandler) GetWithdrawal(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	artifact, err := h.coordinator.GetWithdrawal(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"withdrawal": artifact,
	})
}

func (h *WalletHandler) ClaimWithdrawal(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	artifact, err := h.coordinator.ClaimWithdrawal(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"withdrawal": artifact,
	})
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	balance, err := h.coordinator.Deposit(c.Request.Context(), accountID, mode, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": balance,
	})
}
