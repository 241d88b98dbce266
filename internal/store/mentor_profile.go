package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mentorlink/apiserver/internal/db"
	"github.com/mentorlink/apiserver/types"
)

// MentorProfileRepository handles persistence for mentor profiles.
type MentorProfileRepository struct {
	db      db.DBTX
	timeout time.Duration
}

func NewMentorProfileRepository(conn db.DBTX, timeout time.Duration) *MentorProfileRepository {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &MentorProfileRepository{db: conn, timeout: timeout}
}

// Upsert creates the profile of profile.UserID, or replaces it when the
// user was already promoted.
func (r *MentorProfileRepository) Upsert(ctx context.Context, profile types.MentorProfile) (types.MentorProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if profile.Specialization == "" {
		profile.Specialization = types.DefaultSpecialization
	}
	if profile.ExpertiseAreas == nil {
		profile.ExpertiseAreas = []string{}
	}
	areas, err := json.Marshal(profile.ExpertiseAreas)
	if err != nil {
		return types.MentorProfile{}, fmt.Errorf("encode expertise areas: %w", err)
	}

	now := time.Now().UTC()
	const query = `
		INSERT INTO mentor_profiles (user_id, specialization, experience_years, hourly_rate, bio, expertise_areas, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			specialization = EXCLUDED.specialization,
			experience_years = EXCLUDED.experience_years,
			hourly_rate = EXCLUDED.hourly_rate,
			bio = EXCLUDED.bio,
			expertise_areas = EXCLUDED.expertise_areas,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		profile.UserID,
		profile.Specialization,
		profile.ExperienceYears,
		profile.HourlyRate,
		profile.Bio,
		string(areas),
		now,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		return types.MentorProfile{}, classify(ctx, err)
	}
	return profile, nil
}

func (r *MentorProfileRepository) GetByUserID(ctx context.Context, userID int) (types.MentorProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, user_id, specialization, experience_years, hourly_rate,
			COALESCE(bio, ''), expertise_areas, created_at, updated_at
		FROM mentor_profiles
		WHERE user_id = $1`
	var (
		profile types.MentorProfile
		areas   []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Specialization,
		&profile.ExperienceYears,
		&profile.HourlyRate,
		&profile.Bio,
		&areas,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.MentorProfile{}, ErrNotFound
		}
		return types.MentorProfile{}, classify(ctx, err)
	}
	profile.ExpertiseAreas = []string{}
	if len(areas) > 0 {
		if err := json.Unmarshal(areas, &profile.ExpertiseAreas); err != nil {
			return types.MentorProfile{}, fmt.Errorf("decode expertise areas: %w", err)
		}
	}
	return profile, nil
}
