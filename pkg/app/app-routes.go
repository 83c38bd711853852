package app

import "net/http"

// initRouter initializes the router of the App
func (s *App) initRouter() {
	s.router.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/index/stats", s.StatsHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/index/refresh", s.RefreshHandler).Methods(http.MethodPost)
	s.srv.Handler = s.router
}
