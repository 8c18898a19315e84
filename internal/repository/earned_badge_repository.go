package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/classbadges/classbadges-api/internal/models"
)

// EarnedBadgeRepository provides database access for earned-badge records.
type EarnedBadgeRepository struct {
	db *sqlx.DB
}

// NewEarnedBadgeRepository creates a new instance of EarnedBadgeRepository.
func NewEarnedBadgeRepository(db *sqlx.DB) *EarnedBadgeRepository {
	return &EarnedBadgeRepository{db: db}
}

const earnedBadgeColumns = `id, badge_id, student_id, awarded_at, reactions`

// FindByID returns an earned badge by identifier.
func (r *EarnedBadgeRepository) FindByID(ctx context.Context, id string) (*models.EarnedBadge, error) {
	query := fmt.Sprintf(`SELECT %s FROM earned_badges WHERE id = $1 LIMIT 1`, earnedBadgeColumns)
	var earned models.EarnedBadge
	if err := r.db.GetContext(ctx, &earned, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find earned badge by id: %w", err)
	}
	return &earned, nil
}

// ExistsForStudentBadge reports whether the (student, badge) pair already
// holds an earned badge.
func (r *EarnedBadgeRepository) ExistsForStudentBadge(ctx context.Context, studentID, badgeID string) (bool, error) {
	const query = `SELECT 1 FROM earned_badges WHERE student_id = $1 AND badge_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID, badgeID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check earned badge existence: %w", err)
	}
	return true, nil
}

// ListByStudent returns all earned badges of a student, newest first.
func (r *EarnedBadgeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EarnedBadge, error) {
	query := fmt.Sprintf(`SELECT %s FROM earned_badges WHERE student_id = $1 ORDER BY awarded_at DESC`, earnedBadgeColumns)
	var earned []models.EarnedBadge
	if err := r.db.SelectContext(ctx, &earned, query, studentID); err != nil {
		return nil, fmt.Errorf("list earned badges by student: %w", err)
	}
	return earned, nil
}

// ListFeed returns the community feed: earned badges whose originating
// submission is visible and whose badge template is visible, joined with
// display fields.
func (r *EarnedBadgeRepository) ListFeed(ctx context.Context, limit int) ([]models.FeedEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT eb.id AS earned_badge_id, eb.badge_id, b.name AS badge_name, b.category, b.difficulty, eb.student_id, u.full_name AS student_name, eb.awarded_at, eb.reactions
FROM earned_badges eb
JOIN badges b ON b.id = eb.badge_id
JOIN users u ON u.id = eb.student_id
WHERE b.visible = TRUE AND EXISTS (
	SELECT 1 FROM submissions s
	WHERE s.badge_id = eb.badge_id AND s.student_id = eb.student_id AND s.status = 'APPROVED' AND s.is_visible = TRUE
)
ORDER BY eb.awarded_at DESC
LIMIT %d`, limit)

	var entries []models.FeedEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list earned badge feed: %w", err)
	}
	return entries, nil
}

// ListTranscriptRows returns a student's earned badges joined with badge
// details, oldest first, for transcript export.
func (r *EarnedBadgeRepository) ListTranscriptRows(ctx context.Context, studentID string) ([]models.FeedEntry, error) {
	const query = `SELECT eb.id AS earned_badge_id, eb.badge_id, b.name AS badge_name, b.category, b.difficulty, eb.student_id, u.full_name AS student_name, eb.awarded_at, eb.reactions
FROM earned_badges eb
JOIN badges b ON b.id = eb.badge_id
JOIN users u ON u.id = eb.student_id
WHERE eb.student_id = $1
ORDER BY eb.awarded_at`

	var entries []models.FeedEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list transcript rows: %w", err)
	}
	return entries, nil
}

// UpdateReactions replaces the earned badge's reaction collection.
func (r *EarnedBadgeRepository) UpdateReactions(ctx context.Context, id string, reactions models.ReactionSet) error {
	const query = `UPDATE earned_badges SET reactions = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reactions); err != nil {
		return fmt.Errorf("update earned badge reactions: %w", err)
	}
	return nil
}
