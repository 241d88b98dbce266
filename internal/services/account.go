package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/auth"
	"github.com/mentorlink/apiserver/internal/logging"
	"github.com/mentorlink/apiserver/internal/store"
	"github.com/mentorlink/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id int, patch types.UserPatch) (types.User, error)
	List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error)
	TouchLastLogin(ctx context.Context, id int) error
	RepairRoles(ctx context.Context) (int64, error)
}

// MentorProfileRepository defines persistence operations for mentor profiles.
type MentorProfileRepository interface {
	Upsert(ctx context.Context, profile types.MentorProfile) (types.MentorProfile, error)
	GetByUserID(ctx context.Context, userID int) (types.MentorProfile, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Compare(ctx context.Context, plaintext, hash string) (bool, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID int) (auth.Token, error)
}

// Recorder receives operation outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveOperation(operation string, err error)
	ObserveHash(seconds float64)
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

// ProfileUpdate is a self-service profile change.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Bio       *string
}

// AdminUserUpdate is an administrator's change to another account. Role
// and status hold raw values that UpdateUser parses.
type AdminUserUpdate struct {
	ProfileUpdate
	Role   *string
	Status *string
}

// MentorProfileInput carries the optional fields of a promotion.
type MentorProfileInput struct {
	Specialization  string
	ExperienceYears int
	HourlyRate      float64
	Bio             string
	ExpertiseAreas  []string
}

// Session is the result of a successful register or login.
type Session struct {
	User  types.User
	Token auth.Token
}

// Promotion is the result of PromoteToMentor.
type Promotion struct {
	User          types.User          `json:"user"`
	MentorProfile types.MentorProfile `json:"mentorProfile"`
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users []types.User `json:"users"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// AccountService orchestrates registration, login and account mutation.
type AccountService struct {
	users    UserRepository
	tx       Transactor
	hasher   PasswordHasher
	tokens   TokenIssuer
	events   *eventSink
	recorder Recorder
	logger   logging.Logger
	now      func() time.Time
}

// Option configures an AccountService.
type Option func(*AccountService)

// WithEvents publishes account events to channel.
func WithEvents(publisher EventPublisher, channel string) Option {
	return func(s *AccountService) {
		if publisher != nil {
			s.events = &eventSink{publisher: publisher, channel: channel}
		}
	}
}

// WithRecorder reports operation outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *AccountService) { s.recorder = r }
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *AccountService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewAccountService(users UserRepository, tx Transactor, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) *AccountService {
	s := &AccountService{
		users:  users,
		tx:     tx,
		hasher: hasher,
		tokens: tokens,
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a mentee account and issues its first token. The
// ExistsByEmail check is a fast path; the unique index decides races.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (session Session, err error) {
	defer func() { s.observe("register", err) }()

	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if fields := missingFields(map[string]string{
		"firstName": in.FirstName,
		"lastName":  in.LastName,
		"email":     in.Email,
		"password":  in.Password,
	}); len(fields) > 0 {
		return Session{}, apperr.InvalidInput("invalid registration data", fields)
	}

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return Session{}, apperr.FromStore(err, nil)
	}
	if exists {
		return Session{}, apperr.DuplicateEmail(nil)
	}

	hash, err := s.hash(ctx, in.Password)
	if err != nil {
		return Session{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         types.RoleMentee,
		Status:       types.StatusActive,
	})
	if err != nil {
		return Session{}, apperr.FromStore(err, nil)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, apperr.Internal(err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	s.publish(ctx, EventUserRegistered, user, nil)
	return Session{User: user, Token: token}, nil
}

// Login checks credentials. Unknown emails and wrong passwords fail the
// same way. A disabled account is reported only after its password matched.
func (s *AccountService) Login(ctx context.Context, email, password string) (session Session, err error) {
	defer func() { s.observe("login", err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperr.InvalidCredentials()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return Session{}, apperr.FromStore(err, apperr.InvalidCredentials())
	}

	ok, err := s.compare(ctx, password, user.PasswordHash)
	if err != nil {
		return Session{}, apperr.Unavailable(err)
	}
	if !ok {
		return Session{}, apperr.InvalidCredentials()
	}
	if user.Status != types.StatusActive {
		return Session{}, apperr.Forbidden(apperr.ReasonAccountDisabled, "account is not active")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, apperr.Internal(err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn(ctx, "failed to record last login", "user_id", user.ID, "error", err)
	} else {
		now := s.now().UTC()
		user.LastLogin = &now
	}
	return Session{User: user, Token: token}, nil
}

// Profile returns the current state of a user.
func (s *AccountService) Profile(ctx context.Context, id int) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, apperr.FromStore(err, apperr.NotFound("user not found"))
	}
	return user, nil
}

// GetUser is Profile for administrators.
func (s *AccountService) GetUser(ctx context.Context, id int) (types.User, error) {
	return s.Profile(ctx, id)
}

// UpdateProfile applies a self-service change. Role and status cannot be
// changed this way.
func (s *AccountService) UpdateProfile(ctx context.Context, id int, in ProfileUpdate) (user types.User, err error) {
	defer func() { s.observe("update_profile", err) }()

	patch, fields := profilePatch(in)
	if len(fields) > 0 {
		return types.User{}, apperr.InvalidInput("invalid profile data", fields)
	}

	user, err = s.users.Update(ctx, id, patch)
	if err != nil {
		return types.User{}, apperr.FromStore(err, apperr.NotFound("user not found"))
	}
	return user, nil
}

// UpdateUser applies an administrator's change to any account, including
// its role and status. The new role applies to the user's next request.
func (s *AccountService) UpdateUser(ctx context.Context, id int, in AdminUserUpdate) (user types.User, err error) {
	defer func() { s.observe("update_user", err) }()

	patch, fields := profilePatch(in.ProfileUpdate)
	if in.Role != nil {
		role, ok := types.ParseRole(*in.Role)
		if !ok {
			fields["role"] = "must be one of mentee, mentor, admin"
		}
		patch.Role = &role
	}
	if in.Status != nil {
		status, ok := types.ParseStatus(*in.Status)
		if !ok {
			fields["status"] = "must be one of active, inactive, suspended"
		}
		patch.Status = &status
	}
	if len(fields) > 0 {
		return types.User{}, apperr.InvalidInput("invalid user data", fields)
	}

	user, err = s.users.Update(ctx, id, patch)
	if err != nil {
		return types.User{}, apperr.FromStore(err, apperr.NotFound("user not found"))
	}

	s.logger.Info(ctx, "user updated by admin", "user_id", id, "role", user.Role, "status", user.Status)
	if patch.Role != nil || patch.Status != nil {
		s.publish(ctx, EventUserUpdated, user, nil)
	}
	return user, nil
}

func profilePatch(in ProfileUpdate) (types.UserPatch, map[string]string) {
	fields := map[string]string{}
	patch := types.UserPatch{Phone: in.Phone, Bio: in.Bio}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if v == "" {
			fields["firstName"] = "cannot be blank"
		}
		patch.FirstName = &v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if v == "" {
			fields["lastName"] = "cannot be blank"
		}
		patch.LastName = &v
	}
	return patch, fields
}

// PromoteToMentor sets the mentor role and writes the mentor profile in one
// transaction. Administrators cannot be demoted this way.
func (s *AccountService) PromoteToMentor(ctx context.Context, userID int, in MentorProfileInput) (promotion Promotion, err error) {
	defer func() { s.observe("promote", err) }()

	fields := map[string]string{}
	if in.ExperienceYears < 0 {
		fields["experienceYears"] = "must be no less than 0"
	}
	if in.HourlyRate < 0 {
		fields["hourlyRate"] = "must be no less than 0"
	}
	if len(fields) > 0 {
		return Promotion{}, apperr.InvalidInput("invalid mentor profile", fields)
	}

	var previous types.Role
	err = s.tx.WithinTx(ctx, func(ctx context.Context, users UserRepository, profiles MentorProfileRepository) error {
		current, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if current.Role.Is(types.RoleAdmin) {
			return apperr.InvalidInput("administrators cannot be promoted to mentor", map[string]string{
				"role": "is already admin",
			})
		}
		previous = current.Role

		role := types.RoleMentor
		user, err := users.Update(ctx, userID, types.UserPatch{Role: &role})
		if err != nil {
			return err
		}

		specialization := strings.TrimSpace(in.Specialization)
		if specialization == "" {
			specialization = types.DefaultSpecialization
		}
		profile, err := profiles.Upsert(ctx, types.MentorProfile{
			UserID:          userID,
			Specialization:  specialization,
			ExperienceYears: in.ExperienceYears,
			HourlyRate:      in.HourlyRate,
			Bio:             strings.TrimSpace(in.Bio),
			ExpertiseAreas:  in.ExpertiseAreas,
		})
		if err != nil {
			return err
		}
		promotion = Promotion{User: user, MentorProfile: profile}
		return nil
	})
	if err != nil {
		return Promotion{}, apperr.FromStore(err, apperr.NotFound("user not found"))
	}

	s.logger.Info(ctx, "user promoted to mentor", "user_id", userID)
	s.publish(ctx, EventUserPromoted, promotion.User, map[string]string{"previousRole": string(previous)})
	return promotion, nil
}

// SetStatus changes the lifecycle status of a user. Unknown statuses are
// rejected before any write.
func (s *AccountService) SetStatus(ctx context.Context, userID int, raw string) (user types.User, err error) {
	defer func() { s.observe("set_status", err) }()

	status, ok := types.ParseStatus(raw)
	if !ok {
		return types.User{}, apperr.InvalidInput("invalid status", map[string]string{
			"status": "must be one of active, inactive, suspended",
		})
	}

	user, err = s.users.Update(ctx, userID, types.UserPatch{Status: &status})
	if err != nil {
		return types.User{}, apperr.FromStore(err, apperr.NotFound("user not found"))
	}

	s.logger.Info(ctx, "user status changed", "user_id", userID, "status", status)
	s.publish(ctx, EventUserStatusChanged, user, nil)
	return user, nil
}

// ListUsers returns one page of users. page is 1-based.
func (s *AccountService) ListUsers(ctx context.Context, search, role, status string, page, limit int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	filter := types.UserFilter{Search: strings.TrimSpace(search), Offset: (page - 1) * limit, Limit: limit}
	if strings.TrimSpace(role) != "" {
		parsed, ok := types.ParseRole(role)
		if !ok {
			return UserPage{}, apperr.InvalidInput("invalid role filter", map[string]string{"role": "must be one of mentee, mentor, admin"})
		}
		filter.Role = parsed
	}
	if strings.TrimSpace(status) != "" {
		parsed, ok := types.ParseStatus(status)
		if !ok {
			return UserPage{}, apperr.InvalidInput("invalid status filter", map[string]string{"status": "must be one of active, inactive, suspended"})
		}
		filter.Status = parsed
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return UserPage{}, apperr.FromStore(err, nil)
	}
	return UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

// RepairRoles coerces missing roles to mentee.
func (s *AccountService) RepairRoles(ctx context.Context) (int64, error) {
	repaired, err := s.users.RepairRoles(ctx)
	if err != nil {
		return 0, apperr.FromStore(err, nil)
	}
	if repaired > 0 {
		s.logger.Warn(ctx, "repaired users without a role", "count", repaired)
	}
	return repaired, nil
}

// EnsureAdmin creates the administrator account, or promotes an existing
// account with that email to admin. The password is only set on creation.
func (s *AccountService) EnsureAdmin(ctx context.Context, in RegisterInput) (types.User, bool, error) {
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" {
		return types.User{}, false, apperr.InvalidInput("admin email and password are required", nil)
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if existing.Role.Is(types.RoleAdmin) && existing.Status == types.StatusActive {
			return existing, false, nil
		}
		role, status := types.RoleAdmin, types.StatusActive
		user, err := s.users.Update(ctx, existing.ID, types.UserPatch{Role: &role, Status: &status})
		if err != nil {
			return types.User{}, false, apperr.FromStore(err, nil)
		}
		return user, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return types.User{}, false, apperr.FromStore(err, nil)
	}

	hash, err := s.hash(ctx, in.Password)
	if err != nil {
		return types.User{}, false, err
	}
	if in.FirstName == "" {
		in.FirstName = "Admin"
	}
	if in.LastName == "" {
		in.LastName = "Mentorlink"
	}
	user, err := s.users.Create(ctx, types.User{
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		PasswordHash:  hash,
		Role:          types.RoleAdmin,
		Status:        types.StatusActive,
		EmailVerified: true,
	})
	if err != nil {
		return types.User{}, false, apperr.FromStore(err, nil)
	}
	s.logger.Info(ctx, "admin account created", "user_id", user.ID)
	return user, true, nil
}

func (s *AccountService) hash(ctx context.Context, password string) (string, error) {
	start := s.now()
	hash, err := s.hasher.Hash(ctx, password)
	s.observeHash(start)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvalidInput {
			return "", err
		}
		if ctx.Err() != nil {
			return "", apperr.Unavailable(err)
		}
		return "", apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	return hash, nil
}

func (s *AccountService) compare(ctx context.Context, password, hash string) (bool, error) {
	start := s.now()
	ok, err := s.hasher.Compare(ctx, password, hash)
	s.observeHash(start)
	return ok, err
}

func (s *AccountService) observeHash(start time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveHash(s.now().Sub(start).Seconds())
	}
}

func (s *AccountService) observe(operation string, err error) {
	if s.recorder != nil {
		s.recorder.ObserveOperation(operation, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func missingFields(values map[string]string) map[string]string {
	fields := map[string]string{}
	for name, value := range values {
		if value == "" {
			fields[name] = "cannot be blank"
		}
	}
	return fields
}
