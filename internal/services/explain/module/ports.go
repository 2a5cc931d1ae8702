package module

import (
	"ruleexplain/internal/platform/net/middleware"
	svc "ruleexplain/internal/services/explain/service"
)

// Ports holds the ports exposed by the explain module
type Ports struct {
	Service svc.Service
	// Auth guards submit and cancel; nil leaves them open
	Auth middleware.AuthPort
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
