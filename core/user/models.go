package user

import (
	"net/mail"
	"strings"
)

// User is a host account, read-only from the worker's point of view.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

// FullName returns "First Last", falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

func (u User) HasEmail() bool {
	return strings.TrimSpace(u.Email) != ""
}

func (u User) Address() mail.Address {
	return mail.Address{Name: u.FullName(), Address: strings.TrimSpace(u.Email)}
}
