package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	catalogdomain "github.com/greenbasket/backoffice/internal/catalog/domain"
	"github.com/greenbasket/backoffice/internal/observability/obscontext"
)

type catalogHandler struct {
	svc catalogdomain.Service
}

func (h *catalogHandler) register(rg *gin.RouterGroup) {
	rg.POST("/products", h.create)
	rg.GET("/products", h.list)
	rg.GET("/products/:id", h.get)
	rg.GET("/products/code/:code", h.lookup)
}

func (h *catalogHandler) create(c *gin.Context) {
	var req catalogdomain.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, catalogdomain.ErrInvalidName)
		return
	}
	req.Actor = obscontext.ActorFromContext(c.Request.Context())

	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *catalogHandler) list(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	resp, err := h.svc.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": resp})
}

func (h *catalogHandler) get(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		respondError(c, catalogdomain.ErrProductNotFound)
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *catalogHandler) lookup(c *gin.Context) {
	resp, err := h.svc.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
