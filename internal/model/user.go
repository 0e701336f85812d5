// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account. Profile fields are nullable and written as a
// unit by a profile update.
//
// PasswordHash never leaves the server: the json:"-" tag keeps it out of every
// response body.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Country      *string   `json:"country"`
	Handle       *string   `json:"handle"`
	Pronouns     *string   `json:"pronouns"`
	Bio          *string   `json:"bio"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary is the public identity returned by login and verify.
type UserSummary struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

// Profile is the editable part of a user.
type Profile struct {
	Handle   *string `json:"handle"`
	Country  *string `json:"country"`
	Pronouns *string `json:"pronouns"`
	Bio      *string `json:"bio"`
}

func (u *User) Profile() Profile {
	return Profile{
		Handle:   u.Handle,
		Country:  u.Country,
		Pronouns: u.Pronouns,
		Bio:      u.Bio,
	}
}
