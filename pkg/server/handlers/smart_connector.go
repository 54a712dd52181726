package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/server/runtime"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// SmartConnectorHandler serves the knowledge base life cycle and lease routes.
type SmartConnectorHandler struct {
	runtime *runtime.Runtime
}

// NewSmartConnectorHandler creates a new smart connector handler
func NewSmartConnectorHandler(rt *runtime.Runtime) *SmartConnectorHandler {
	return &SmartConnectorHandler{runtime: rt}
}

// List handles GET /sc. With a Knowledge-Base-Id header only that knowledge
// base is listed, and an unknown id is a 404.
func (h *SmartConnectorHandler) List(c *gin.Context) {
	scs, err := h.runtime.List(c.GetHeader(types.HeaderKnowledgeBaseID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, scs)
}

// Create handles POST /sc
func (h *SmartConnectorHandler) Create(c *gin.Context) {
	var reg types.KnowledgeBaseRegistration
	if err := c.ShouldBindJSON(&reg); err != nil {
		badRequest(c, "invalid smart connector: "+err.Error())
		return
	}
	if err := h.runtime.Register(reg); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Delete handles DELETE /sc
func (h *SmartConnectorHandler) Delete(c *gin.Context) {
	if err := h.runtime.Delete(c.GetHeader(types.HeaderKnowledgeBaseID)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// RenewLease handles PUT /sc/lease/renew
func (h *SmartConnectorHandler) RenewLease(c *gin.Context) {
	lease, err := h.runtime.RenewLease(c.GetHeader(types.HeaderKnowledgeBaseID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lease)
}
