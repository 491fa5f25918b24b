package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-core/internal/models"
	"casino-core/internal/services"
)

type TableHandler struct {
	coordinator *services.Coordinator
}

func NewTableHandler(coordinator *services.Coordinator) *TableHandler {
	return &TableHandler{coordinator: coordinator}
}

func (h *TableHandler) activeMode(c *gin.Context) (models.Mode, bool) {
	mode, err := h.coordinator.ActiveMode(c.Request.Context(), c.GetInt64("account_id"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return mode, true
}

func (h *TableHandler) Join(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.TableJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.JoinTable(c.Request.Context(), accountID, mode, req.TableID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"table":   view,
	})
}

func (h *TableHandler) Leave(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	if err := h.coordinator.LeaveTable(c.Request.Context(), accountID, mode); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TableHandler) Bet(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.TableBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	round, err := h.coordinator.TableBet(c.Request.Context(), accountID, mode, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"table":      round.View,
		"settlement": round.Settlement,
	})
}

func (h *TableHandler) Action(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req models.TableActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	round, err := h.coordinator.TableAction(c.Request.Context(), accountID, mode, req.Action, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"table":      round.View,
		"settlement": round.Settlement,
	})
}

func (h *TableHandler) Status(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	mode, ok := h.activeMode(c)
	if !ok {
		return
	}

	view, err := h.coordinator.TableStatus(c.Request.Context(), accountID, mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"table":   view,
	})
}
