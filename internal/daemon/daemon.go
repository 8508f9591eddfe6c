// Package daemon exposes a running sequence over a Unix socket so other
// cellpilot invocations can query and steer it.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/npratt/cellpilot/internal/config"
	"github.com/npratt/cellpilot/internal/controller"
)

// Controller is the part of *controller.Controller the daemon drives.
type Controller interface {
	State() controller.State
	Stats() controller.Stats
	Pause()
	Resume()
	Stop()
}

// Daemon serves control requests for one run.
type Daemon struct {
	config     *config.Config
	controller Controller
	sockPath   string
	logger     *slog.Logger

	mu        sync.RWMutex
	running   bool
	startTime time.Time
	listener  net.Listener
	conns     sync.WaitGroup
}

// New creates a Daemon for ctrl. ctrl may be nil, in which case every
// control request fails.
func New(cfg *config.Config, ctrl Controller, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		config:     cfg,
		controller: ctrl,
		sockPath:   cfg.Paths.Socket,
		logger:     logger,
	}
}

// Running returns whether the daemon is currently serving.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// StartTime returns when the daemon started serving.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
