package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	appErrors "github.com/classbadges/classbadges-api/pkg/errors"
)

// ReactionType enumerates the fixed set of reaction symbols.
type ReactionType string

const (
	ReactionClap      ReactionType = "CLAP"
	ReactionStar      ReactionType = "STAR"
	ReactionHeart     ReactionType = "HEART"
	ReactionFire      ReactionType = "FIRE"
	ReactionCelebrate ReactionType = "CELEBRATE"
)

// Valid reports whether the reaction type is one of the supported symbols.
func (t ReactionType) Valid() bool {
	switch t {
	case ReactionClap, ReactionStar, ReactionHeart, ReactionFire, ReactionCelebrate:
		return true
	}
	return false
}

// Reaction groups the users who reacted with one symbol. Entries with an
// empty user set are pruned on every toggle and never persist.
type Reaction struct {
	Type  ReactionType `json:"type"`
	Users []string     `json:"users"`
}

// ReactionSet is the ordered reaction collection owned by a badge or an
// earned badge, stored as a jsonb column.
type ReactionSet []Reaction

// Value implements driver.Valuer for jsonb storage.
func (s ReactionSet) Value() (driver.Value, error) {
	if s == nil {
		s = ReactionSet{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal reactions: %w", err)
	}
	return raw, nil
}

// Scan implements sql.Scanner for jsonb storage.
func (s *ReactionSet) Scan(src interface{}) error {
	if src == nil {
		*s = ReactionSet{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported reactions column type %T", src)
	}
	if len(raw) == 0 {
		*s = ReactionSet{}
		return nil
	}
	return json.Unmarshal(raw, s)
}

// Toggle flips the actor's membership in the given reaction type and
// returns the updated collection. Toggling twice in a row restores the
// original collection. The same function serves badges and earned badges.
func (s ReactionSet) Toggle(reactionType ReactionType, actorEmail string) (ReactionSet, error) {
	if !reactionType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid reaction type: %s", reactionType))
	}
	email := strings.ToLower(strings.TrimSpace(actorEmail))
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor email is required")
	}

	result := make(ReactionSet, 0, len(s)+1)
	found := false
	for _, entry := range s {
		if entry.Type != reactionType {
			result = append(result, entry)
			continue
		}
		found = true
		users := make([]string, 0, len(entry.Users)+1)
		removed := false
		for _, u := range entry.Users {
			if u == email {
				removed = true
				continue
			}
			users = append(users, u)
		}
		if !removed {
			users = append(users, email)
		}
		if len(users) > 0 {
			result = append(result, Reaction{Type: reactionType, Users: users})
		}
	}
	if !found {
		result = append(result, Reaction{Type: reactionType, Users: []string{email}})
	}
	return result, nil
}

// CountFor returns the number of users who reacted with the given type.
func (s ReactionSet) CountFor(reactionType ReactionType) int {
	for _, entry := range s {
		if entry.Type == reactionType {
			return len(entry.Users)
		}
	}
	return 0
}
