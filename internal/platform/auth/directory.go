package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown login or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is a member of clinic staff as exposed to clients.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type account struct {
	user User
	hash []byte
}

// Directory holds the staff accounts that can sign in.
type Directory struct {
	accounts map[string]account
}

// Credential seeds one account in a Directory.
type Credential struct {
	User     User
	Password string
}

// DefaultCredentials are the built-in clinic accounts.
func DefaultCredentials() []Credential {
	return []Credential{
		{User: User{ID: "1", Name: "Dr. Smith", Email: "dentist", Role: RolePractitioner}, Password: "123"},
		{User: User{ID: "2", Name: "Jane Assistant", Email: "assistant", Role: RoleAssistant}, Password: "123"},
	}
}

// NewDirectory hashes the given credentials with bcrypt at cost.
func NewDirectory(creds []Credential, cost int) (*Directory, error) {
	d := &Directory{accounts: make(map[string]account, len(creds))}
	for _, cr := range creds {
		if !cr.User.Role.Valid() {
			return nil, fmt.Errorf("account %s: invalid role", cr.User.Email)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(cr.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", cr.User.Email, err)
		}
		d.accounts[cr.User.Email] = account{user: cr.User, hash: hash}
	}
	return d, nil
}

// Authenticate returns the user whose login and password match.
func (d *Directory) Authenticate(email, password string) (*User, error) {
	acct, ok := d.accounts[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u := acct.user
	return &u, nil
}

// Lookup returns the user with the given ID.
func (d *Directory) Lookup(id string) (*User, bool) {
	for _, acct := range d.accounts {
		if acct.user.ID == id {
			u := acct.user
			return &u, true
		}
	}
	return nil, false
}
