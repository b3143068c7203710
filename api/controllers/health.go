package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/karimndoye/sunumarket-backend/api/responses"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

// Pinger is a dependency that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController serves liveness and readiness probes.
type HealthController struct {
	logger  *logger.Logger
	pingers map[string]Pinger
}

func NewHealthController(logg *logger.Logger, pingers map[string]Pinger) *HealthController {
	return &HealthController{logger: logg, pingers: pingers}
}

// Live reports process liveness.
func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	responses.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether every dependency answers a ping.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	statuses := map[string]string{}
	healthy := true
	for name, pinger := range c.pingers {
		if pinger == nil {
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			statuses[name] = "down"
			healthy = false
			c.logger.Error(ctx, "readiness probe failed for "+name, err)
			continue
		}
		statuses[name] = "up"
	}

	if !healthy {
		responses.Error(w, errors.New(errors.CodeDependency, "dependency unavailable").WithDetails(statuses))
		return
	}
	responses.JSON(w, http.StatusOK, statuses)
}
