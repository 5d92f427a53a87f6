package handlers

import "net/http"

// Handlers groups every handler the router serves
type Handlers struct {
	Learning   *LearningHandler
	Badges     *BadgeHandler
	Accounts   *AccountHandler
	Admin      *AdminHandler
	Middleware *Middleware
}

// NewRouter registers all routes and wraps them in logging and panic recovery
func NewRouter(h Handlers) http.Handler {
	mux := http.NewServeMux()
	m := h.Middleware

	mux.HandleFunc("GET /healthz", h.Admin.Health)

	// Learning
	mux.HandleFunc("POST /evaluate", h.Learning.Evaluate)
	mux.HandleFunc("GET /streak/{userId}", h.Learning.GetStreak)
	mux.HandleFunc("GET /history/{userId}", h.Learning.GetHistory)
	mux.HandleFunc("GET /history/{userId}/stats", h.Learning.GetStats)

	// Badges
	mux.HandleFunc("GET /badges/{userId}", h.Badges.List)
	mux.HandleFunc("POST /badges/{userId}/check", h.Badges.Check)
	mux.HandleFunc("POST /badges/{userId}/award", m.RequireAdmin(h.Badges.Award))

	// Freezes
	mux.HandleFunc("GET /freezes/{userId}", h.Accounts.GetFreezes)
	mux.HandleFunc("POST /freezes/{userId}/grant", m.RequireAdmin(h.Accounts.GrantFreezes))

	// Accounts
	mux.HandleFunc("POST /users", h.Accounts.CreateUser)
	mux.HandleFunc("GET /users/{userId}", h.Accounts.GetUser)
	mux.HandleFunc("GET /users/{userId}/notifications", h.Accounts.GetNotifications)
	mux.HandleFunc("PUT /users/{userId}/notifications", h.Accounts.UpdateNotifications)
	mux.HandleFunc("POST /families", h.Accounts.CreateFamily)

	// Admin
	mux.HandleFunc("GET /admin/export", m.RequireAdmin(h.Admin.ExportDatabase))
	mux.HandleFunc("POST /admin/grants", m.RequireAdmin(h.Admin.GrantAll))

	return m.Logging(m.Recover(mux))
}
