package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbadges/classbadges-api/internal/models"
)

func TestReviewApproveCommitsEarnInOneTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("s1", models.SubmissionApproved, sqlmock.AnyArg(), models.SubmissionPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO earned_badges")).
		WithArgs("earn-1", "badge-1", "kid-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET earned_badge_ids = array_append(earned_badge_ids, $2)")).
		WithArgs("kid-1", "badge-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.Review(context.Background(), ReviewParams{
		ID:        "s1",
		Status:    models.SubmissionApproved,
		EarnID:    "earn-1",
		BadgeID:   "badge-1",
		StudentID: "kid-1",
	})
	require.NoError(t, err)
	assert.True(t, outcome.EarnCreated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewApproveDuplicateEarnIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO earned_badges")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET earned_badge_ids")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	outcome, err := repo.Review(context.Background(), ReviewParams{
		ID:        "s1",
		Status:    models.SubmissionApproved,
		EarnID:    "earn-1",
		BadgeID:   "badge-1",
		StudentID: "kid-1",
	})
	require.NoError(t, err)
	assert.False(t, outcome.EarnCreated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewLostRaceSurfacesNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Review(context.Background(), ReviewParams{
		ID:     "s1",
		Status: models.SubmissionRejected,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewEarnFailureRollsBackStatusChange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO earned_badges")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.Review(context.Background(), ReviewParams{
		ID:        "s1",
		Status:    models.SubmissionApproved,
		EarnID:    "earn-1",
		BadgeID:   "badge-1",
		StudentID: "kid-1",
	})
	assert.ErrorIs(t, err, ErrEarnFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRejectAppendsComment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("comments = comments || $3::jsonb")).
		WithArgs("s1", models.SubmissionRejected, sqlmock.AnyArg(), sqlmock.AnyArg(), models.SubmissionPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.Review(context.Background(), ReviewParams{
		ID:      "s1",
		Status:  models.SubmissionRejected,
		Comment: &models.Comment{Author: "teacher@school.edu", Text: "missing evidence", CreatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	assert.False(t, outcome.EarnCreated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateVisibilityRequiresOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET is_visible = $3, show_evidence = $4")).
		WithArgs("s1", "someone-else", true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateVisibility(context.Background(), "s1", "someone-else", true, false)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
