package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

const serviceName = "feyza-trust"

type MetaHandler struct {
	env      string
	version  string
	features []string
}

// NewMetaHandler lists the enabled features in a stable order.
func NewMetaHandler(env, version string, features map[string]bool) *MetaHandler {
	enabled := make([]string, 0, len(features))
	for name, on := range features {
		if on {
			enabled = append(enabled, name)
		}
	}
	sort.Strings(enabled)
	return &MetaHandler{env: env, version: version, features: enabled}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  serviceName,
		"version":  h.version,
		"env":      h.env,
		"features": h.features,
	})
}
