package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"casino-core/internal/models"
	"casino-core/internal/services"
)

type GameHandler struct {
	coordinator *services.Coordinator
}

func NewGameHandler(coordinator *services.Coordinator) *GameHandler {
	return &GameHandler{coordinator: coordinator}
}

// activeMode resolves the caller's wallet partition for this request.
func (h *GameHandler) activeMode(c *gin.Context) (models.Mode, bool) {
	mode, err := h.coordinator.ActiveMode(c.Request.Context(), c.GetInt64("account_id"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return mode, true
}

func (h *GameHandler) StartCrash(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.CrashBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	status, err := h.coordinator.StartCrash(c.Request.Context(), accountID, mode, req.Amount, req.AutoCashout)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    status,
	})
}

func (h *GameHandler) CrashStatus(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	status, err := h.coordinator.CrashStatus(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    status,
	})
}

func (h *GameHandler) CrashCashout(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	status, err := h.coordinator.CrashCashout(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  status,
	})
}

func (h *GameHandler) CrashHistory(c *gin.Context) {
	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil {
		limit = 50
	}

	history, err := h.coordinator.CrashHistory(c.Request.Context(), mode, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": history,
		"count":   len(history),
	})
}

func (h *GameHandler) StartMines(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.MinesBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.StartMines(c.Request.Context(), accountID, mode, req.Amount, req.MinesCount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    view,
	})
}

func (h *GameHandler) MinesStatus(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.MinesStatus(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    view,
	})
}

func (h *GameHandler) RevealMines(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.MinesRevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.RevealMines(c.Request.Context(), accountID, mode, *req.Position)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  view,
	})
}

func (h *GameHandler) CashoutMines(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.CashoutMines(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  view,
	})
}

func (h *GameHandler) AbandonMines(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.AbandonMines(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  view,
	})
}

func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.coordinator.Verify(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"verification": result,
	})
}
