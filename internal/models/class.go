package models

import (
	"time"

	"github.com/lib/pq"
)

// Class represents an academic class. Roster is the authoritative list of
// member student ids, kept in sync with Student.ClassID by the roster service.
type Class struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Grade             string         `db:"grade" json:"grade"`
	Section           string         `db:"section" json:"section"`
	PromotionRank     *int           `db:"promotion_rank" json:"promotion_rank,omitempty"`
	HomeroomTeacherID *string        `db:"homeroom_teacher_id" json:"homeroom_teacher_id,omitempty"`
	Roster            pq.StringArray `db:"roster" json:"roster"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// HasMember reports whether the roster contains the student id.
func (c *Class) HasMember(studentID string) bool {
	for _, id := range c.Roster {
		if id == studentID {
			return true
		}
	}
	return false
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Grade     string
	Section   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
