// Package memstore is an in-memory credential store that stands in for
// Postgres in service and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mentorlink/apiserver/internal/services"
	"github.com/mentorlink/apiserver/internal/store"
	"github.com/mentorlink/apiserver/types"
)

// Store keeps users and mentor profiles in maps.
type Store struct {
	txMu sync.Mutex

	mu            sync.Mutex
	users         map[int]types.User
	profiles      map[int]types.MentorProfile
	nextUserID    int
	nextProfileID int

	// FailProfileWrites makes every profile upsert fail with this error.
	FailProfileWrites error
}

func New() *Store {
	return &Store{
		users:    make(map[int]types.User),
		profiles: make(map[int]types.MentorProfile),
	}
}

// Users returns the user repository view of s.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Profiles returns the mentor profile repository view of s.
func (s *Store) Profiles() *MentorProfileRepository {
	return &MentorProfileRepository{s: s}
}

// WithinTx serializes transactions and restores the previous state when fn
// fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, users services.UserRepository, profiles services.MentorProfileRepository) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users := make(map[int]types.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	profiles := make(map[int]types.MentorProfile, len(s.profiles))
	for k, v := range s.profiles {
		profiles[k] = v
	}
	nextUser, nextProfile := s.nextUserID, s.nextProfileID
	s.mu.Unlock()

	defer func() {
		p := recover()
		if err != nil || p != nil {
			s.mu.Lock()
			s.users, s.profiles = users, profiles
			s.nextUserID, s.nextProfileID = nextUser, nextProfile
			s.mu.Unlock()
		}
		if p != nil {
			panic(p)
		}
	}()

	return fn(ctx, s.Users(), s.Profiles())
}

// UserRepository implements services.UserRepository in memory.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.byEmail(email)
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.byEmail(email)
	return ok, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, ok := r.s.byEmail(user.Email); ok {
		return types.User{}, store.ErrDuplicateEmail
	}
	now := time.Now().UTC()
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	user.Role = user.Role.Normalize()
	if !user.Status.IsValid() {
		user.Status = types.StatusActive
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, id int, patch types.UserPatch) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if patch.Empty() {
		return user, nil
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		user.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Bio != nil {
		user.Bio = strings.TrimSpace(*patch.Bio)
	}
	if patch.Role != nil {
		user.Role = patch.Role.Normalize()
	}
	if patch.Status != nil {
		user.Status = *patch.Status
	}
	user.UpdatedAt = time.Now().UTC()
	r.s.users[id] = user
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]types.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		if filter.Role != "" && !user.Role.Is(filter.Role) {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(user.FirstName), search) &&
			!strings.Contains(strings.ToLower(user.LastName), search) &&
			!strings.Contains(user.Email, search) {
			continue
		}
		matched = append(matched, user)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	r.s.users[id] = user
	return nil
}

func (r *UserRepository) RepairRoles(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var repaired int64
	for id, user := range r.s.users {
		if strings.TrimSpace(string(user.Role)) == "" {
			user.Role = types.RoleMentee
			user.UpdatedAt = time.Now().UTC()
			r.s.users[id] = user
			repaired++
		}
	}
	return repaired, nil
}

// Put stores user as is, bypassing normalization. Tests use it to seed
// legacy rows.
func (s *Store) Put(user types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID > s.nextUserID {
		s.nextUserID = user.ID
	}
	s.users[user.ID] = user
}

// Raw returns the stored user without going through a repository.
func (s *Store) Raw(id int) (types.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	return user, ok
}

func (s *Store) byEmail(email string) (types.User, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.users {
		if user.Email == email {
			return user, true
		}
	}
	return types.User{}, false
}

// MentorProfileRepository implements services.MentorProfileRepository in memory.
type MentorProfileRepository struct {
	s *Store
}

func (r *MentorProfileRepository) Upsert(ctx context.Context, profile types.MentorProfile) (types.MentorProfile, error) {
	if err := ctx.Err(); err != nil {
		return types.MentorProfile{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailProfileWrites != nil {
		return types.MentorProfile{}, r.s.FailProfileWrites
	}
	if _, ok := r.s.users[profile.UserID]; !ok {
		return types.MentorProfile{}, store.ErrNotFound
	}

	now := time.Now().UTC()
	if existing, ok := r.s.profiles[profile.UserID]; ok {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		r.s.nextProfileID++
		profile.ID = r.s.nextProfileID
		profile.CreatedAt = now
	}
	if profile.Specialization == "" {
		profile.Specialization = types.DefaultSpecialization
	}
	if profile.ExpertiseAreas == nil {
		profile.ExpertiseAreas = []string{}
	}
	profile.UpdatedAt = now
	r.s.profiles[profile.UserID] = profile
	return profile, nil
}

func (r *MentorProfileRepository) GetByUserID(ctx context.Context, userID int) (types.MentorProfile, error) {
	if err := ctx.Err(); err != nil {
		return types.MentorProfile{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[userID]
	if !ok {
		return types.MentorProfile{}, store.ErrNotFound
	}
	return profile, nil
}

var (
	_ services.UserRepository          = (*UserRepository)(nil)
	_ services.MentorProfileRepository = (*MentorProfileRepository)(nil)
	_ services.Transactor              = (*Store)(nil)
)
