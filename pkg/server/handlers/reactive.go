package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/server/dto"
	"github.com/TNO/knowledge-engine/pkg/server/runtime"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// ReactiveHandler serves the long poll and handle responses.
type ReactiveHandler struct {
	runtime *runtime.Runtime
}

// NewReactiveHandler creates a new reactive handler
func NewReactiveHandler(rt *runtime.Runtime) *ReactiveHandler {
	return &ReactiveHandler{runtime: rt}
}

// Poll handles GET /sc/handle. It responds with the next handle request, or
// with 202 once the poll timeout passes.
func (h *ReactiveHandler) Poll(c *gin.Context) {
	req, err := h.runtime.Poll(c.Request.Context(), c.GetHeader(types.HeaderKnowledgeBaseID))
	if err != nil {
		writeError(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusAccepted, dto.Info(fmt.Sprintf(
			"This is a heartbeat message that the server is still alive, please renew your long polling request within %d seconds.",
			int(h.runtime.PollTimeout().Seconds()))))
		return
	}
	c.JSON(http.StatusOK, req)
}

// Respond handles POST /sc/handle
func (h *ReactiveHandler) Respond(c *gin.Context) {
	kiID := c.GetHeader(types.HeaderKnowledgeInteractionID)
	if kiID == "" {
		badRequest(c, "Knowledge-Interaction-Id header is required")
		return
	}
	var resp dto.HandleResponse
	if err := c.ShouldBindJSON(&resp); err != nil {
		badRequest(c, "invalid handle response: "+err.Error())
		return
	}
	if err := h.runtime.Respond(c.GetHeader(types.HeaderKnowledgeBaseID), kiID, resp); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
