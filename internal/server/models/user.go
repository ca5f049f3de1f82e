// Package models defines server-side data models persisted in the database.
package models

import "time"

// Image references a binary asset held by the external image store.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// IsZero reports whether no image is attached.
func (i Image) IsZero() bool { return i.PublicID == "" }

// User is the credential record. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"isAccountVerified"`
	ProfilePhoto Image     `json:"profilePhoto"`
	Bio          string    `json:"bio"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role.IsAdmin() }

// PublicProfile is the minimal view returned alongside an identity token.
type PublicProfile struct {
	ID           string `json:"_id"`
	IsAdmin      bool   `json:"isAdmin"`
	ProfilePhoto Image  `json:"profilePhoto"`
	Username     string `json:"username"`
}

func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		IsAdmin:      u.IsAdmin(),
		ProfilePhoto: u.ProfilePhoto,
		Username:     u.Username,
	}
}
