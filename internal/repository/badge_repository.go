package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classbadges/classbadges-api/internal/models"
)

// BadgeRepository provides database access for the badge catalog.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository creates a new instance of BadgeRepository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

const badgeColumns = `id, name, description, criteria, difficulty, category, image_url, visible, created_by, reactions, created_at, updated_at`

// FindByID returns a badge by identifier.
func (r *BadgeRepository) FindByID(ctx context.Context, id string) (*models.Badge, error) {
	query := fmt.Sprintf(`SELECT %s FROM badges WHERE id = $1 LIMIT 1`, badgeColumns)
	var badge models.Badge
	if err := r.db.GetContext(ctx, &badge, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find badge by id: %w", err)
	}
	return &badge, nil
}

// List returns badges matching the filter with a total count.
func (r *BadgeRepository) List(ctx context.Context, filter models.BadgeFilter) ([]models.Badge, int, error) {
	baseQuery := `FROM badges WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Visible != nil {
		conditions = append(conditions, fmt.Sprintf("visible = $%d", len(args)+1))
		args = append(args, *filter.Visible)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", badgeColumns, baseQuery, pageSize, offset)

	var badges []models.Badge
	if err := r.db.SelectContext(ctx, &badges, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list badges: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count badges: %w", err)
	}

	return badges, total, nil
}

// Create inserts a new badge.
func (r *BadgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if badge.CreatedAt.IsZero() {
		badge.CreatedAt = now
	}
	badge.UpdatedAt = now
	if badge.Reactions == nil {
		badge.Reactions = models.ReactionSet{}
	}

	const query = `INSERT INTO badges (id, name, description, criteria, difficulty, category, image_url, visible, created_by, reactions, created_at, updated_at) VALUES (:id, :name, :description, :criteria, :difficulty, :category, :image_url, :visible, :created_by, :reactions, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, badge); err != nil {
		return fmt.Errorf("create badge: %w", err)
	}
	return nil
}

// Update updates the badge template fields.
func (r *BadgeRepository) Update(ctx context.Context, badge *models.Badge) error {
	badge.UpdatedAt = time.Now().UTC()
	const query = `UPDATE badges SET name = :name, description = :description, criteria = :criteria, difficulty = :difficulty, category = :category, image_url = :image_url, visible = :visible, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, badge); err != nil {
		return fmt.Errorf("update badge: %w", err)
	}
	return nil
}

// UpdateReactions replaces the badge's reaction collection.
func (r *BadgeRepository) UpdateReactions(ctx context.Context, id string, reactions models.ReactionSet) error {
	const query = `UPDATE badges SET reactions = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reactions, time.Now().UTC()); err != nil {
		return fmt.Errorf("update badge reactions: %w", err)
	}
	return nil
}
