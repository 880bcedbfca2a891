package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

// RunContext is the immutable per-run state handed to every component
// constructor: configuration, a run id for log correlation, and the operator
// host recorded on registry entries.
type RunContext struct {
	cfg      Config
	runID    string
	operator string
}

// NewRunContext snapshots cfg; later changes to cfg do not leak into the run.
func NewRunContext(cfg *Config) *RunContext {
	return &RunContext{
		cfg:      *cfg,
		runID:    uuid.NewString(),
		operator: operatorHost(),
	}
}

func (r *RunContext) Config() Config   { return r.cfg }
func (r *RunContext) RunID() string    { return r.runID }
func (r *RunContext) Operator() string { return r.operator }

// operatorHost returns "hostname (platform version)", or the bare hostname
// when gopsutil cannot read platform info.
func operatorHost() string {
	info, err := host.Info()
	if err == nil && info.Hostname != "" {
		if info.Platform != "" {
			return fmt.Sprintf("%s (%s %s)", info.Hostname, info.Platform, info.PlatformVersion)
		}
		return info.Hostname
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return runtime.GOOS
}
