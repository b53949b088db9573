package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcprouter/mcprouter/internal/mcp"
)

// HealthInfo supplies the live counters the health endpoint reports.
type HealthInfo struct {
	Instances func() []*mcp.Instance
}

// HealthHandler serves GET /api/health and GET /health.
type HealthHandler struct {
	info      HealthInfo
	startTime time.Time
}

// NewHealthHandler creates a health handler recording the server start time.
func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info, startTime: time.Now()}
}

type healthResponse struct {
	Status     string          `json:"status"`
	UptimeSecs int64           `json:"uptime_seconds"`
	Components healthComponents `json:"components"`
}

type healthComponents struct {
	Instances healthInstances `json:"instances"`
}

type healthInstances struct {
	Total     int `json:"total"`
	Connected int `json:"connected"`
	Active    int `json:"active"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var total, connected, active int
	if h.info.Instances != nil {
		for _, inst := range h.info.Instances() {
			total++
			if inst.Settings.IsActive {
				active++
			}
			if inst.Session != nil && inst.Session.State() == mcp.StateConnected {
				connected++
			}
		}
	}

	resp := healthResponse{
		Status:     "ok",
		UptimeSecs: int64(time.Since(h.startTime).Seconds()),
		Components: healthComponents{
			Instances: healthInstances{Total: total, Connected: connected, Active: active},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
