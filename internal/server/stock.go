package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/greenbasket/backoffice/internal/observability/obscontext"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
)

type stockHandler struct {
	svc stockdomain.Service
}

func (h *stockHandler) register(rg *gin.RouterGroup) {
	rg.GET("/stock/:product_id", h.get)
	rg.GET("/stock/:product_id/history", h.history)
	rg.POST("/stock/:product_id/restock", h.restock)
	rg.POST("/stock/:product_id/adjust", h.adjust)
	rg.PATCH("/stock/:product_id/config", h.updateConfig)
}

type stockMutationBody struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type stockAdjustBody struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type stockConfigBody struct {
	ReorderThreshold *int    `json:"reorder_threshold"`
	MaxCapacity      *int    `json:"max_capacity"`
	Location         *string `json:"location"`
}

func (h *stockHandler) get(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		respondError(c, stockdomain.ErrInvalidProductID)
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *stockHandler) history(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		respondError(c, stockdomain.ErrInvalidProductID)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	resp, err := h.svc.History(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": resp})
}

func (h *stockHandler) restock(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		respondError(c, stockdomain.ErrInvalidProductID)
		return
	}
	var body stockMutationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, stockdomain.ErrInvalidQuantity)
		return
	}

	resp, err := h.svc.Restock(c.Request.Context(), stockdomain.MutationRequest{
		ProductID: id,
		Quantity:  body.Quantity,
		Actor:     obscontext.ActorFromContext(c.Request.Context()),
		Reason:    body.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *stockHandler) adjust(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		respondError(c, stockdomain.ErrInvalidProductID)
		return
	}
	var body stockAdjustBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, stockdomain.ErrInvalidQuantity)
		return
	}

	resp, err := h.svc.Adjust(c.Request.Context(), stockdomain.AdjustRequest{
		ProductID: id,
		Delta:     body.Delta,
		Actor:     obscontext.ActorFromContext(c.Request.Context()),
		Reason:    body.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *stockHandler) updateConfig(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		respondError(c, stockdomain.ErrInvalidProductID)
		return
	}
	var body stockConfigBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, stockdomain.ErrInvalidThreshold)
		return
	}

	resp, err := h.svc.UpdateConfig(c.Request.Context(), stockdomain.UpdateConfigRequest{
		ProductID:        id,
		ReorderThreshold: body.ReorderThreshold,
		MaxCapacity:      body.MaxCapacity,
		Location:         body.Location,
		Actor:            obscontext.ActorFromContext(c.Request.Context()),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func productID(c *gin.Context) (snowflake.ID, error) {
	return snowflake.ParseString(c.Param("product_id"))
}
