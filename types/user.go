package types

import "time"

// User represents an account in the marketplace.
// It contains identity, role, lifecycle status and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// FirstName is the user's given name.
	FirstName string `json:"firstName" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"lastName" db:"last_name"`

	// Email is the login key. It is unique regardless of case and
	// always stored lower-cased.
	Email string `json:"email" db:"email"`

	// Role indicates the user's permission class (mentee, mentor, admin).
	Role Role `json:"role" db:"role"`

	// Status is the account lifecycle flag, independent of Role.
	Status Status `json:"status" db:"status"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Bio is an optional free-form description.
	Bio string `json:"bio,omitempty" db:"bio"`

	// EmailVerified reports whether the email address has been confirmed.
	EmailVerified bool `json:"emailVerified" db:"email_verified"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"lastLogin,omitempty" db:"last_login"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// UserPatch carries a partial update. Nil fields are left untouched.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Bio       *string
	Role      *Role
	Status    *Status
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil &&
		p.Bio == nil && p.Role == nil && p.Status == nil
}

// UserFilter narrows a user listing.
type UserFilter struct {
	Search string
	Role   Role
	Status Status
	Offset int
	Limit  int
}
