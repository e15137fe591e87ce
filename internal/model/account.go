package model

// Profile is a user's view of their own account.
type Profile struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}
