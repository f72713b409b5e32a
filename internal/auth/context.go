package auth

import "net/http"

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyUserID is the key for the user ID in the context
	ContextKeyUserID ContextKey = "userID"
	// ContextKeyIsAdmin is the key for the admin flag in the context
	ContextKeyIsAdmin ContextKey = "isAdmin"
	// ContextKeySession is the key for the session in the context
	ContextKeySession ContextKey = "session"
)

// GetUserID retrieves the authenticated user ID from the request context.
func GetUserID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyUserID).(string); ok {
		return id
	}
	return ""
}

// IsAdmin checks if the authenticated user is an administrator.
func IsAdmin(r *http.Request) bool {
	if isAdmin, ok := r.Context().Value(ContextKeyIsAdmin).(bool); ok {
		return isAdmin
	}
	return false
}
