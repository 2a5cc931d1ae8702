package modkit

import "ruleexplain/internal/modkit/httpkit"

// Module is one route group of the API, e.g. meta or explain
type Module interface {
	// Name is the module's log and docs name
	Name() string
	// MountRoutes registers the module under its prefix on the versioned API router
	MountRoutes(r httpkit.Router)
	// Ports exposes what other modules may wire against; nil when there is nothing
	Ports() any
}
