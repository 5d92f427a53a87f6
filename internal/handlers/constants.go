package handlers

const (
	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidUserID       = "Invalid user id"
	ErrUnauthorized        = "Unauthorized"
	ErrAdminDisabled       = "Admin endpoints are disabled"
	ErrTooManyRequests     = "Too many requests, slow down and think first"
	ErrInternalServerError = "Internal server error"

	// maxBodyBytes bounds every JSON request body
	maxBodyBytes = 64 << 10
)
