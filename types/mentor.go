package types

import "time"

// MentorProfile holds the marketplace-facing data of a user with the mentor role.
type MentorProfile struct {
	ID              int       `json:"id" db:"id"`
	UserID          int       `json:"userId" db:"user_id"`
	Specialization  string    `json:"specialization" db:"specialization"`
	ExperienceYears int       `json:"experienceYears" db:"experience_years"`
	HourlyRate      float64   `json:"hourlyRate" db:"hourly_rate"`
	Bio             string    `json:"bio,omitempty" db:"bio"`
	ExpertiseAreas  []string  `json:"expertiseAreas" db:"expertise_areas"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultSpecialization is used when a promotion does not name one.
const DefaultSpecialization = "General"
