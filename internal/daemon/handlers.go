package daemon

import (
	"context"
	"fmt"
	"time"
)

// handleRequest dispatches the request to the appropriate handler.
func (d *Daemon) handleRequest(ctx context.Context, req *Request) Response {
	if d.controller == nil {
		return Response{Error: "no controller available"}
	}

	switch req.Method {
	case MethodStatus:
		return d.handleStatus()
	case MethodPause:
		d.controller.Pause()
		return Response{Result: "pausing"}
	case MethodResume:
		d.controller.Resume()
		return Response{Result: "resuming"}
	case MethodStop:
		d.controller.Stop()
		return Response{Result: "stopping"}
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// handleStatus reports the controller state and counters.
func (d *Daemon) handleStatus() Response {
	stats := d.controller.Stats()
	startTime := d.StartTime()

	return Response{
		Result: StatusResponse{
			Status:    string(d.controller.State()),
			RunID:     stats.RunID,
			Uptime:    time.Since(startTime).Truncate(time.Second).String(),
			StartTime: startTime.Format(time.RFC3339),
			Run: RunStatus{
				Index:       stats.Index,
				Total:       stats.Total,
				Generation:  stats.Generation,
				Restarts:    stats.Restarts,
				MaxRestarts: stats.MaxRestarts,
				Completed:   stats.Completed,
				Failed:      stats.Failed,
				Artifacts:   stats.Artifacts,
			},
		},
	}
}
