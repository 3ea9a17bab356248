package global

import "github.com/micromeda/micromeda-server/config"

// Liveness and readiness flags reported by the probes.
var (
	Alive = false
	Ready = false
)

// Build information, injected with -ldflags "-X ...".
var (
	GitCommitHash = "unknown"
	BuildTime     = "unknown"
)

// ServiceName is the name of this microservice.
var ServiceName = "micromeda-server"

// Initialize loads the global values that depend on configuration.
func Initialize() {
	if name := config.GetString("SERVICE_NAME"); name != "" {
		ServiceName = name
	}
}
