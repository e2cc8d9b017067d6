package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/internal/ratelimit"
	"github.com/nulzo/model-bridge/pkg/api"
)

// ProviderLister is the part of the registry the capability endpoints need.
type ProviderLister interface {
	IDs() []api.ProviderID
	Configured() map[api.ProviderID]bool
}

// LimitLister exposes the configured sliding windows.
type LimitLister interface {
	Limits() map[api.ProviderID]ratelimit.Limit
}

type ConfigHandler struct {
	providers   ProviderLister
	limits      LimitLister
	profilePath string
}

func NewConfigHandler(providers ProviderLister, limits LimitLister, profilePath string) *ConfigHandler {
	return &ConfigHandler{
		providers:   providers,
		limits:      limits,
		profilePath: profilePath,
	}
}

// Get returns the capability view: registered providers, their limits and the mailbox
// directory. Credentials are never included.
//
// GET /api/config
func (h *ConfigHandler) Get(c *gin.Context) {
	limits := h.limits.Limits()
	out := make(map[api.ProviderID]api.RateLimitInfo, len(limits))
	for id, l := range limits {
		out[id] = api.RateLimitInfo{
			Requests: l.Requests,
			WindowMS: l.Window.Milliseconds(),
		}
	}

	services := h.providers.IDs()
	if services == nil {
		services = []api.ProviderID{}
	}

	c.JSON(http.StatusOK, api.ConfigResponse{
		Services:    services,
		RateLimits:  out,
		ProfilePath: h.profilePath,
	})
}
