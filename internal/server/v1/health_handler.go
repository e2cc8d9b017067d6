package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/internal/mailbox"
	"github.com/nulzo/model-bridge/pkg/api"
)

// MailboxState reports the current phase of the mailbox cycle.
type MailboxState interface {
	State() mailbox.State
}

type HealthHandler struct {
	startTime time.Time
	providers ProviderLister
	mailbox   MailboxState
	now       func() time.Time
}

func NewHealthHandler(providers ProviderLister, mb MailboxState) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		providers: providers,
		mailbox:   mb,
		now:       time.Now,
	}
}

// Health returns liveness, uptime and which providers have credentials configured.
//
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	now := h.now()
	resp := api.HealthResponse{
		Status:    "ok",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
		Services:  h.providers.Configured(),
	}
	if h.mailbox != nil {
		resp.Mailbox = h.mailbox.State().String()
	}

	c.JSON(http.StatusOK, resp)
}
