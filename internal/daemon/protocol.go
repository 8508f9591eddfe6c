package daemon

// Request is a JSON-RPC style request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Methods understood by the daemon.
const (
	MethodStatus = "status"
	MethodPause  = "pause"
	MethodResume = "resume"
	MethodStop   = "stop"
)

// StatusResponse describes the run behind the socket.
type StatusResponse struct {
	Status    string    `json:"status"`
	RunID     string    `json:"run_id"`
	Uptime    string    `json:"uptime"`
	StartTime string    `json:"start_time"`
	Run       RunStatus `json:"run"`
}

// RunStatus carries the sequence counters.
type RunStatus struct {
	Index       int      `json:"index"`
	Total       int      `json:"total"`
	Generation  int      `json:"generation"`
	Restarts    int      `json:"restarts"`
	MaxRestarts int      `json:"max_restarts"`
	Completed   int      `json:"completed"`
	Failed      int      `json:"failed"`
	Artifacts   []string `json:"artifacts,omitempty"`
}
