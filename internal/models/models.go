package models

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for persisted records
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// StoredCredential is the durable bearer token slot for one API server.
// Only used by the SQLite credential backend; the keyring backend stores the
// same value under a per-server key.
type StoredCredential struct {
	BaseModel
	Server    string    `json:"server" gorm:"uniqueIndex;not null"`
	Token     string    `json:"-" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// UserType is the marketplace role of an account
type UserType string

const (
	UserTypeClient   UserType = "client"
	UserTypeProvider UserType = "provider"
	UserTypeMaster   UserType = "master"
)

// IsValid reports whether t is one of the known roles
func (t UserType) IsValid() bool {
	switch t {
	case UserTypeClient, UserTypeProvider, UserTypeMaster:
		return true
	default:
		return false
	}
}

// Label returns a human readable role name
func (t UserType) Label() string {
	switch t {
	case UserTypeClient:
		return "Client"
	case UserTypeProvider:
		return "Service provider"
	case UserTypeMaster:
		return "Master"
	default:
		return "Unknown"
	}
}

// User is the profile record returned by the backend
type User struct {
	ID             int64    `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	UserType       UserType `json:"user_type"`
	PhoneNumber    string   `json:"phone_number,omitempty"`
	ProfilePicture *string  `json:"profile_picture,omitempty"`
	City           string   `json:"city,omitempty"`
	State          string   `json:"state,omitempty"`
	Address        string   `json:"address,omitempty"`
	DateJoined     string   `json:"date_joined,omitempty"`
	IsActive       bool     `json:"is_active"`
	IsStaff        bool     `json:"is_staff"`
}

// FullName joins first and last name, falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Clone returns a deep copy so snapshots never share mutable state
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ProfilePicture != nil {
		pic := *u.ProfilePicture
		c.ProfilePicture = &pic
	}
	return &c
}

// Credentials is the login payload
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration is the account creation payload. ServiceCategories is only
// meaningful (and then mandatory) for providers.
type Registration struct {
	Username          string   `json:"username" validate:"required,max=150"`
	Email             string   `json:"email" validate:"required,email"`
	Password          string   `json:"password" validate:"required,min=8"`
	PasswordConfirm   string   `json:"password_confirm" validate:"required,eqfield=Password"`
	FirstName         string   `json:"first_name" validate:"required"`
	LastName          string   `json:"last_name" validate:"required"`
	UserType          UserType `json:"user_type" validate:"required,oneof=client provider"`
	PhoneNumber       string   `json:"phone_number,omitempty"`
	City              string   `json:"city" validate:"required,max=100"`
	State             string   `json:"state" validate:"required,len=2"`
	Address           string   `json:"address,omitempty"`
	ServiceCategories []int    `json:"service_categories,omitempty"`
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Nil fields are left untouched by the backend.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,min=1"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,min=1"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	City        *string `json:"city,omitempty" validate:"omitempty,max=100"`
	State       *string `json:"state,omitempty" validate:"omitempty,len=2"`
	Address     *string `json:"address,omitempty"`
}

// IsEmpty reports whether no field is set
func (p ProfileUpdate) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.PhoneNumber == nil && p.City == nil && p.State == nil && p.Address == nil
}

// PasswordChange is the change-password payload
type PasswordChange struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}
