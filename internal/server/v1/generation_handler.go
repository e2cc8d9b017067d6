package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/internal/broker"
	"github.com/nulzo/model-bridge/internal/server/validator"
	"github.com/nulzo/model-bridge/pkg/api"
)

type GenerationHandler struct {
	dispatcher broker.Dispatcher
	validator  *validator.Validator
}

func NewGenerationHandler(dispatcher broker.Dispatcher, v *validator.Validator) *GenerationHandler {
	return &GenerationHandler{
		dispatcher: dispatcher,
		validator:  v,
	}
}

// Create is the synchronous intake channel.
//
// POST /api/ai-request
func (h *GenerationHandler) Create(c *gin.Context) {
	var req api.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&api.ValidationError{
			Field:   "body",
			Message: "Invalid request",
			Details: h.validator.ParseError(err),
		})
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.NewGenerationResponse(result))
}
