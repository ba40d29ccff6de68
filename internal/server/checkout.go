package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/greenbasket/backoffice/internal/checkout/domain"
	"github.com/greenbasket/backoffice/internal/observability/obscontext"
)

type checkoutHandler struct {
	svc checkoutdomain.Service
}

func (h *checkoutHandler) register(rg *gin.RouterGroup) {
	rg.POST("/checkout", h.checkout)
	rg.POST("/checkout/preview", h.preview)
}

type previewBody struct {
	Items []checkoutdomain.CartItem `json:"items"`
}

func (h *checkoutHandler) checkout(c *gin.Context) {
	var req checkoutdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, checkoutdomain.ErrEmptyCart)
		return
	}
	req.Actor = obscontext.ActorFromContext(c.Request.Context())

	resp, err := h.svc.Checkout(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *checkoutHandler) preview(c *gin.Context) {
	var body previewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, checkoutdomain.ErrEmptyCart)
		return
	}

	resp, err := h.svc.Preview(c.Request.Context(), body.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
