package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/server/runtime"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// ProactiveHandler serves /sc/ask and /sc/post.
type ProactiveHandler struct {
	runtime *runtime.Runtime
}

// NewProactiveHandler creates a new proactive handler
func NewProactiveHandler(rt *runtime.Runtime) *ProactiveHandler {
	return &ProactiveHandler{runtime: rt}
}

type invokeFunc func(ctx context.Context, kbID, kiID string, bindings types.BindingSet) (*runtime.Result, error)

// Ask handles POST /sc/ask
func (h *ProactiveHandler) Ask(c *gin.Context) {
	h.invoke(c, h.runtime.Ask)
}

// Post handles POST /sc/post
func (h *ProactiveHandler) Post(c *gin.Context) {
	h.invoke(c, h.runtime.Post)
}

func (h *ProactiveHandler) invoke(c *gin.Context, fn invokeFunc) {
	kbID := c.GetHeader(types.HeaderKnowledgeBaseID)
	kiID := c.GetHeader(types.HeaderKnowledgeInteractionID)
	if kbID == "" || kiID == "" {
		badRequest(c, "Both Knowledge-Base-Id and Knowledge-Interaction-Id headers should be non-null.")
		return
	}

	bindings, err := readBindings(c.Request.Body)
	if err != nil {
		badRequest(c, "invalid binding set: "+err.Error())
		return
	}

	result, err := fn(c.Request.Context(), kbID, kiID, bindings)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// readBindings accepts a bare binding set or {"bindingSet": [...]}.
func readBindings(r io.Reader) (types.BindingSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return types.BindingSet{}, nil
	}
	if data[0] == '{' {
		var body struct {
			BindingSet types.BindingSet `json:"bindingSet"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		return body.BindingSet, nil
	}
	var bs types.BindingSet
	if err := json.Unmarshal(data, &bs); err != nil {
		return nil, err
	}
	return bs, nil
}
