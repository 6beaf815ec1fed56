package controllers

import (
	"context"
	"net/http"
	"safegate/utils"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthProbe checks one dependency. A nil error means healthy.
type HealthProbe func(ctx context.Context) error

type HealthController struct {
	version   string
	startedAt time.Time
	probes    map[string]HealthProbe
}

func NewHealthController(version string, probes map[string]HealthProbe) *HealthController {
	if probes == nil {
		probes = map[string]HealthProbe{}
	}
	return &HealthController{
		version:   version,
		startedAt: time.Now(),
		probes:    probes,
	}
}

// HealthCheck reports every dependency. Any failing probe makes the
// service "degraded" and the status code 503.
func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(hc.probes))
	for name := range hc.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make(map[string]string, len(names))
	for _, name := range names {
		if err := hc.probes[name](ctx); err != nil {
			statuses[name] = "unhealthy: " + err.Error()
			continue
		}
		statuses[name] = "healthy"
	}

	response := utils.HealthCheckResponse(statuses, hc.version, utils.FormatDuration(time.Since(hc.startedAt)))
	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
