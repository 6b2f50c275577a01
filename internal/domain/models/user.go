package models

import "time"

// User is an account able to authenticate and act on permits.
type User struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedTime  time.Time `json:"created_time"`
}

// UserSession is the authenticated identity carried through every mutating
// call. There is no anonymous or "first user" fallback; handlers reject
// requests without a valid session.
type UserSession struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// IsAdmin reports whether the session has administrative privileges.
func (u UserSession) IsAdmin() bool {
	return u.Role == "admin"
}

// HasRole reports whether the session holds one of the given roles. Admins
// pass every role check.
func (u UserSession) HasRole(roles ...string) bool {
	if u.IsAdmin() {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
