package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlink/apiserver/types"
)

func TestMentorProfileRepository_Upsert_Defaults(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer conn.Close()
	repo := NewMentorProfileRepository(conn, time.Second)

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)INSERT INTO mentor_profiles .* ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(9, "General", 0, 0.0, "", "[]", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))

	profile, err := repo.Upsert(context.Background(), types.MentorProfile{UserID: 9})
	require.NoError(t, err)
	assert.Equal(t, 1, profile.ID)
	assert.Equal(t, types.DefaultSpecialization, profile.Specialization)
	assert.Equal(t, []string{}, profile.ExpertiseAreas)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorProfileRepository_GetByUserID(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer conn.Close()
	repo := NewMentorProfileRepository(conn, time.Second)

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT .* FROM mentor_profiles\s+WHERE user_id = \$1`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "specialization", "experience_years", "hourly_rate", "bio", "expertise_areas", "created_at", "updated_at",
		}).AddRow(1, 9, "Go", 4, 120.5, "gopher", []byte(`["go","sql"]`), now, now))
	mock.ExpectQuery(`(?s)SELECT .* FROM mentor_profiles`).
		WithArgs(10).
		WillReturnError(sql.ErrNoRows)

	profile, err := repo.GetByUserID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Go", profile.Specialization)
	assert.Equal(t, []string{"go", "sql"}, profile.ExpertiseAreas)
	assert.InDelta(t, 120.5, profile.HourlyRate, 0.001)

	_, err = repo.GetByUserID(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotFound)
}
