// FILE: synctrack/src/internal/auth/user.go
package auth

import "time"

// User is an authenticated backend user and its tokens
type User struct {
	ID           string   `json:"id"`
	AppID        string   `json:"app_id"`
	Provider     Provider `json:"provider"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	LoggedIn     bool     `json:"logged_in"`
}

// IsLoggedIn is nil-safe
func (u *User) IsLoggedIn() bool {
	return u != nil && u.LoggedIn
}

// Usable reports whether u can be reused without logging in again
func (u *User) Usable(now time.Time) bool {
	return u.IsLoggedIn() && !TokenExpired(u.RefreshToken, now)
}
