package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteLogin   = "/login"
	RouteRefresh = "/refresh"

	// API Routes (bearer access token)
	RouteAPIMe        = "/api/me"
	RouteAPIEngineers = "/api/engineers"
	RouteAPIEngineer  = "/api/engineers/{id}"

	// Operational Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
