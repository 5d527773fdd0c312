package schema

import (
	"fmt"
	"strings"
)

// User is the cached profile of the signed-in account. Exactly one row exists
// locally at a time.
type User struct {
	ID             string `json:"userId"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email"`
	Occupation     string `json:"occupation,omitempty"`
	AvatarFilePath string `json:"avatarFilePath,omitempty"`
}

// Kind implements Entity.
func (u User) Kind() Kind { return KindUsers }

// Key implements Entity.
func (u User) Key() string { return u.ID }

// Validate checks if the User has valid field values.
func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("user email is required")
	}
	return nil
}

// Details returns the part of the profile mirrored under userDetails.
func (u User) Details() UserDetails {
	return UserDetails{
		Name:           u.Name,
		Occupation:     u.Occupation,
		AvatarFilePath: u.AvatarFilePath,
	}
}
