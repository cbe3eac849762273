package models

// User is the local projection of an identity that can own or trigger notifications.
type User struct {
	BaseModel

	Username  string `gorm:"uniqueIndex;not null" json:"username"`
	Email     string `gorm:"index" json:"email,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`
}

// UserRef is the lightweight identity rendered inside notification views.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Ref returns the identity projection for the user. A nil user yields a ref with
// only the supplied fallback identifier.
func (u *User) Ref(fallbackID string) UserRef {
	if u == nil {
		return UserRef{ID: fallbackID}
	}
	return UserRef{ID: u.ID, Username: u.Username}
}
