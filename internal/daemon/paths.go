package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/npratt/cellpilot/internal/config"
)

// Info is written next to the socket so CLI commands started in any
// subdirectory of the project can find the running daemon.
type Info struct {
	SocketPath  string    `json:"socket_path"`
	PIDPath     string    `json:"pid_path"`
	LogPath     string    `json:"log_path"`
	StatePath   string    `json:"state_path"`
	NotebookURL string    `json:"notebook_url,omitempty"`
	StartTime   time.Time `json:"start_time"`
	PID         int       `json:"pid"`
}

const (
	stateDir = ".cellpilot"
	infoFile = "daemon.json"
)

// projectMarkers are directories that indicate a project root.
var projectMarkers = []string{".git", stateDir}

// ResolvePaths makes every relative path absolute against basePath, or the
// working directory when basePath is empty.
func ResolvePaths(paths config.PathsConfig, basePath string) (config.PathsConfig, error) {
	if basePath == "" {
		var err error
		basePath, err = os.Getwd()
		if err != nil {
			return paths, fmt.Errorf("get working directory: %w", err)
		}
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(basePath, p)
	}

	return config.PathsConfig{
		State:  resolve(paths.State),
		Log:    resolve(paths.Log),
		Socket: resolve(paths.Socket),
		PID:    resolve(paths.PID),
	}, nil
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// project marker. Without a marker it returns startDir.
func FindProjectRoot(startDir string) string {
	if startDir == "" {
		var err error
		if startDir, err = os.Getwd(); err != nil {
			return "."
		}
	}
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return startDir
	}

	for dir := absDir; ; {
		for _, marker := range projectMarkers {
			if fi, err := os.Stat(filepath.Join(dir, marker)); err == nil && fi.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir
		}
		dir = parent
	}
}

// InfoPath returns where daemon.json lives for projectRoot.
func InfoPath(projectRoot string) string {
	return filepath.Join(projectRoot, stateDir, infoFile)
}

// FindInfo locates daemon.json for the project containing startDir.
func FindInfo(startDir string) (*Info, error) {
	path := InfoPath(FindProjectRoot(startDir))
	info, err := ReadInfo(path)
	if err != nil {
		return nil, fmt.Errorf("daemon info not found (checked %s)", path)
	}
	return info, nil
}

// WriteInfo writes info to path, creating its directory.
func WriteInfo(path string, info *Info) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daemon info: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write daemon info: %w", err)
	}
	return nil
}

// ReadInfo reads daemon.json from path.
func ReadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read daemon info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal daemon info: %w", err)
	}
	return &info, nil
}

// RemoveInfo deletes daemon.json. A missing file is not an error.
func RemoveInfo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove daemon info: %w", err)
	}
	return nil
}
