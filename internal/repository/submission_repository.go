package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/classbadges/classbadges-api/internal/models"
)

// ErrEarnFailed marks a storage failure on the earn side of an approval.
// The enclosing transaction rolls the status change back with it.
var ErrEarnFailed = errors.New("earn failed")

// SubmissionRepository provides database access for evidence submissions
// and the transactional review pipeline.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, badge_id, student_id, teacher_id, status, evidence_url, comments, is_visible, show_evidence, created_at, updated_at`

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1 LIMIT 1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &submission, nil
}

// List returns submissions matching the filter with a total count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	baseQuery := `FROM submissions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.BadgeID != "" {
		conditions = append(conditions, fmt.Sprintf("badge_id = $%d", len(args)+1))
		args = append(args, filter.BadgeID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if len(filter.Status) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", submissionColumns, baseQuery, pageSize, offset)

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	return submissions, total, nil
}

// ListPendingByIDs returns pending submissions out of the requested ids,
// restricted to the given teacher when teacherID is non-empty. This is the
// scope resolution for bulk review: ids outside the caller's scope simply
// do not come back.
func (r *SubmissionRepository) ListPendingByIDs(ctx context.Context, ids []string, teacherID string) ([]models.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = ANY($1) AND status = $2`, submissionColumns)
	args := []interface{}{pq.Array(ids), models.SubmissionPending}
	if teacherID != "" {
		query += ` AND teacher_id = $3`
		args = append(args, teacherID)
	}
	query += ` ORDER BY created_at`

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list pending submissions by ids: %w", err)
	}
	return submissions, nil
}

// Create inserts a new pending submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	if submission.Status == "" {
		submission.Status = models.SubmissionPending
	}
	if submission.Comments == nil {
		submission.Comments = models.CommentList{}
	}

	const query = `INSERT INTO submissions (id, badge_id, student_id, teacher_id, status, evidence_url, comments, is_visible, show_evidence, created_at, updated_at) VALUES (:id, :badge_id, :student_id, :teacher_id, :status, :evidence_url, :comments, :is_visible, :show_evidence, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// UpdateVisibility sets the owner-controlled visibility flags. The student
// guard keeps the flags settable only by the owning student.
func (r *SubmissionRepository) UpdateVisibility(ctx context.Context, id, studentID string, isVisible, showEvidence bool) error {
	const query = `UPDATE submissions SET is_visible = $3, show_evidence = $4, updated_at = $5 WHERE id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, studentID, isVisible, showEvidence, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update submission visibility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission visibility: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReviewParams carries one review transition. Earn fields are consulted
// only when Status is APPROVED.
type ReviewParams struct {
	ID        string
	Status    models.SubmissionStatus
	Comment   *models.Comment
	EarnID    string
	BadgeID   string
	StudentID string
	AwardedAt time.Time
}

// ReviewOutcome reports the side effects of one review transition.
type ReviewOutcome struct {
	EarnCreated bool
}

// Review applies one pending→approved/rejected transition atomically:
// status change, optional comment append, and on approval the earned-badge
// insert plus the user's earned-set append all commit or roll back
// together. The pending guard in the UPDATE makes a lost race surface as
// sql.ErrNoRows instead of double-reviewing; the ON CONFLICT clause on the
// earned-badge insert makes a duplicate approval a no-op.
func (r *SubmissionRepository) Review(ctx context.Context, params ReviewParams) (*ReviewOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	var res sql.Result
	if params.Comment != nil {
		appended, err := json.Marshal([]models.Comment{*params.Comment})
		if err != nil {
			return nil, fmt.Errorf("marshal review comment: %w", err)
		}
		res, err = tx.ExecContext(ctx,
			`UPDATE submissions SET status = $2, comments = comments || $3::jsonb, updated_at = $4 WHERE id = $1 AND status = $5`,
			params.ID, params.Status, appended, now, models.SubmissionPending)
		if err != nil {
			return nil, fmt.Errorf("update submission status: %w", err)
		}
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
			params.ID, params.Status, now, models.SubmissionPending)
		if err != nil {
			return nil, fmt.Errorf("update submission status: %w", err)
		}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update submission status: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}

	outcome := &ReviewOutcome{}

	if params.Status == models.SubmissionApproved {
		awardedAt := params.AwardedAt
		if awardedAt.IsZero() {
			awardedAt = now
		}
		earnID := params.EarnID
		if earnID == "" {
			earnID = uuid.NewString()
		}
		earnRes, err := tx.ExecContext(ctx,
			`INSERT INTO earned_badges (id, badge_id, student_id, awarded_at, reactions) VALUES ($1, $2, $3, $4, '[]'::jsonb) ON CONFLICT (student_id, badge_id) DO NOTHING`,
			earnID, params.BadgeID, params.StudentID, awardedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: insert earned badge: %v", ErrEarnFailed, err)
		}
		inserted, err := earnRes.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("%w: insert earned badge: %v", ErrEarnFailed, err)
		}
		outcome.EarnCreated = inserted > 0

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET earned_badge_ids = array_append(earned_badge_ids, $2), updated_at = $3 WHERE id = $1 AND NOT ($2 = ANY(earned_badge_ids))`,
			params.StudentID, params.BadgeID, now); err != nil {
			return nil, fmt.Errorf("%w: append earned badge to user: %v", ErrEarnFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review tx: %w", err)
	}
	return outcome, nil
}
