package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/internal/mailbox"
	"github.com/nulzo/model-bridge/pkg/api"
)

// MailboxProcessor runs one mailbox cycle.
type MailboxProcessor interface {
	Process(ctx context.Context, trigger mailbox.Trigger) (*mailbox.Outcome, error)
}

type MailboxHandler struct {
	mailbox MailboxProcessor
}

func NewMailboxHandler(mb MailboxProcessor) *MailboxHandler {
	return &MailboxHandler{mailbox: mb}
}

// Process runs one mailbox cycle now. The response file is written even when the
// dispatch fails; the dispatch error is then also reported to this caller.
//
// POST /api/process-file-request
func (h *MailboxHandler) Process(c *gin.Context) {
	out, err := h.mailbox.Process(c.Request.Context(), mailbox.TriggerPoll)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if out.Err != nil {
		_ = c.Error(out.Err)
		return
	}

	c.JSON(http.StatusOK, api.ProcessFileResponse{
		Success: true,
		Message: "Request processed and response written to file",
	})
}
