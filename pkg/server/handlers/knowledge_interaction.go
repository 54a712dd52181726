package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/server/dto"
	"github.com/TNO/knowledge-engine/pkg/server/runtime"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// KnowledgeInteractionHandler serves /sc/ki.
type KnowledgeInteractionHandler struct {
	runtime *runtime.Runtime
}

// NewKnowledgeInteractionHandler creates a new knowledge interaction handler
func NewKnowledgeInteractionHandler(rt *runtime.Runtime) *KnowledgeInteractionHandler {
	return &KnowledgeInteractionHandler{runtime: rt}
}

// Register handles POST /sc/ki and responds with the issued id.
func (h *KnowledgeInteractionHandler) Register(c *gin.Context) {
	var ki types.KnowledgeInteraction
	if err := c.ShouldBindJSON(&ki); err != nil {
		badRequest(c, "invalid knowledge interaction: "+err.Error())
		return
	}
	id, err := h.runtime.AddInteraction(c.GetHeader(types.HeaderKnowledgeBaseID), ki)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.KnowledgeInteractionID{KnowledgeInteractionID: id})
}

// List handles GET /sc/ki
func (h *KnowledgeInteractionHandler) List(c *gin.Context) {
	kis, err := h.runtime.Interactions(c.GetHeader(types.HeaderKnowledgeBaseID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kis)
}

// Delete handles DELETE /sc/ki
func (h *KnowledgeInteractionHandler) Delete(c *gin.Context) {
	kiID := c.GetHeader(types.HeaderKnowledgeInteractionID)
	if kiID == "" {
		badRequest(c, "Knowledge-Interaction-Id header is required")
		return
	}
	if err := h.runtime.RemoveInteraction(c.GetHeader(types.HeaderKnowledgeBaseID), kiID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
