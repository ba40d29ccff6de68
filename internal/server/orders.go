package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/greenbasket/backoffice/internal/observability/obscontext"
	orderdomain "github.com/greenbasket/backoffice/internal/order/domain"
)

type orderHandler struct {
	svc orderdomain.Service
}

func (h *orderHandler) register(rg *gin.RouterGroup) {
	rg.GET("/orders", h.list)
	rg.GET("/orders/:id", h.get)
	rg.GET("/orders/number/:number", h.getByNumber)
	rg.POST("/orders/:id/confirm", h.confirm)
	rg.POST("/orders/:id/prepare", h.prepare)
	rg.POST("/orders/:id/ship", h.ship)
	rg.POST("/orders/:id/deliver", h.deliver)
	rg.POST("/orders/:id/cancel", h.cancel)
}

type shipBody struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (h *orderHandler) list(c *gin.Context) {
	filter := orderdomain.ListFilter{
		CustomerID: c.Query("customer_id"),
		Status:     orderdomain.Status(c.Query("status")),
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": resp})
}

func (h *orderHandler) get(c *gin.Context) {
	id, err := orderID(c)
	if err != nil {
		respondError(c, orderdomain.ErrOrderNotFound)
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *orderHandler) getByNumber(c *gin.Context) {
	resp, err := h.svc.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *orderHandler) confirm(c *gin.Context) {
	h.simpleTransition(c, h.svc.Confirm)
}

func (h *orderHandler) prepare(c *gin.Context) {
	h.simpleTransition(c, h.svc.Prepare)
}

func (h *orderHandler) deliver(c *gin.Context) {
	h.simpleTransition(c, h.svc.Deliver)
}

func (h *orderHandler) ship(c *gin.Context) {
	id, err := orderID(c)
	if err != nil {
		respondError(c, orderdomain.ErrOrderNotFound)
		return
	}
	var body shipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, orderdomain.ErrInvalidTracking)
		return
	}

	resp, err := h.svc.Ship(c.Request.Context(), orderdomain.ShipRequest{
		OrderID:        id,
		TrackingNumber: body.TrackingNumber,
		Carrier:        body.Carrier,
		Actor:          obscontext.ActorFromContext(c.Request.Context()),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *orderHandler) cancel(c *gin.Context) {
	id, err := orderID(c)
	if err != nil {
		respondError(c, orderdomain.ErrOrderNotFound)
		return
	}
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, orderdomain.ErrInvalidReason)
		return
	}

	resp, err := h.svc.Cancel(c.Request.Context(), orderdomain.CancelRequest{
		OrderID: id,
		Reason:  body.Reason,
		Actor:   obscontext.ActorFromContext(c.Request.Context()),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *orderHandler) simpleTransition(c *gin.Context, fn func(ctx context.Context, id snowflake.ID, actor string) (*orderdomain.OrderResponse, error)) {
	id, err := orderID(c)
	if err != nil {
		respondError(c, orderdomain.ErrOrderNotFound)
		return
	}

	resp, err := fn(c.Request.Context(), id, obscontext.ActorFromContext(c.Request.Context()))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func orderID(c *gin.Context) (snowflake.ID, error) {
	return snowflake.ParseString(c.Param("id"))
}
