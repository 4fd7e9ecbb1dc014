package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role gates administrative operations (verification review, chain writes).
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidWalletAddress reports whether addr is a well-formed 20-byte hex
// address with 0x prefix.
func ValidWalletAddress(addr string) bool {
	return walletAddressPattern.MatchString(addr)
}

// User is a wallet-identified account. The wallet address is immutable once
// set; the nonce is single-use and rotated on every login attempt.
type User struct {
	ID            uuid.UUID
	WalletAddress string
	Email         string
	Username      string
	PasswordHash  string
	Nonce         string
	Verified      bool
	Role          Role
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SetPassword hashes and stores the optional account password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// ValidatePassword compares a candidate password against the stored hash.
func (u *User) ValidatePassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Profile is the public-safe projection of a User. It never carries the
// nonce or password hash.
type Profile struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	Email         string `json:"email,omitempty"`
	Username      string `json:"username,omitempty"`
	Verified      bool   `json:"isVerified"`
	Role          Role   `json:"role"`
}

// Profile returns the wire projection of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID.String(),
		WalletAddress: u.WalletAddress,
		Email:         u.Email,
		Username:      u.Username,
		Verified:      u.Verified,
		Role:          u.Role,
	}
}

// AuthResult is returned by registration and signature login.
type AuthResult struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}
