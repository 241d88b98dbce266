package handlers

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/types"
)

const minPasswordLength = 8

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 72)),
		validation.Field(&r.Phone, validation.Length(0, 20)),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate only checks presence; anything else is reported as invalid
// credentials by the account service.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Bio       *string `json:"bio"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Phone, validation.Length(0, 20)),
		validation.Field(&r.Bio, validation.Length(0, 2000)),
	)
}

type PromoteRequest struct {
	Specialization  string   `json:"specialization"`
	ExperienceYears int      `json:"experienceYears"`
	HourlyRate      float64  `json:"hourlyRate"`
	Bio             string   `json:"bio"`
	ExpertiseAreas  []string `json:"expertiseAreas"`
}

func (r PromoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Specialization, validation.Length(0, 200)),
		validation.Field(&r.ExperienceYears, validation.Min(0), validation.Max(80)),
		validation.Field(&r.HourlyRate, validation.Min(0.0)),
		validation.Field(&r.ExpertiseAreas, validation.Length(0, 20), validation.By(func(value any) error {
			for _, area := range value.([]string) {
				if area == "" || len(area) > 100 {
					return errors.New("each area must be between 1 and 100 characters")
				}
			}
			return nil
		})),
	)
}

type StatusRequest struct {
	Status string `json:"status"`
}

func (r StatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.By(func(value any) error {
			if _, ok := types.ParseStatus(value.(string)); !ok {
				return errors.New("must be one of active, inactive, suspended")
			}
			return nil
		})),
	)
}

type AdminUpdateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role"`
	Status    *string `json:"status"`
}

func (r AdminUpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Phone, validation.Length(0, 20)),
		validation.Field(&r.Bio, validation.Length(0, 2000)),
		validation.Field(&r.Role, validation.By(optional(func(v string) bool {
			_, ok := types.ParseRole(v)
			return ok
		}, "must be one of mentee, mentor, admin"))),
		validation.Field(&r.Status, validation.By(optional(func(v string) bool {
			_, ok := types.ParseStatus(v)
			return ok
		}, "must be one of active, inactive, suspended"))),
	)
}

// optional validates a *string field with valid when it is set.
func optional(valid func(string) bool, message string) validation.RuleFunc {
	return func(value any) error {
		v, ok := value.(*string)
		if !ok || v == nil || valid(*v) {
			return nil
		}
		return errors.New(message)
	}
}

type validatable interface {
	Validate() error
}

// validate runs v's rules and converts failures into a per-field
// InvalidInput error.
func validate(v validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for name, fieldErr := range fieldErrs {
			fields[name] = fieldErr.Error()
		}
		return apperr.InvalidInput("validation failed", fields)
	}
	return apperr.InvalidInput(err.Error(), nil)
}
