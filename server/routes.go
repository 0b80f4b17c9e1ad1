package server

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.AuthEndpointMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.AuthEndpointMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteLogin, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteRefresh, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(noContent, s.APIMiddleware()...))

	// API routes (require a client access token)
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireClientAuth())...))
	s.RegisterRouteHandler("GET "+RouteAPIEngineers, ChainMiddleware(s.ListEngineersHandler(), s.APIMiddleware(s.RequireClientAuth())...))
	s.RegisterRouteHandler("GET "+RouteAPIEngineer, ChainMiddleware(s.GetEngineerHandler(), s.APIMiddleware(s.RequireClientAuth())...))

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
}
