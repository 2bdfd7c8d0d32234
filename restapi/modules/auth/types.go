package auth

// Locals keys set by the middleware.
const (
	LocalAuthenticated = "is_authenticated"
	LocalUserID        = "user_id"
	LocalUsername      = "username"
)

// AuthCookie is the cookie carrying the session token.
const AuthCookie = "auth_token"

// UserResponse defines the session info returned to the frontend
type UserResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
