package models

import "time"

// Student represents a learner registered in the institution. ClassID is a
// derived back-pointer to the owning class roster; it is mutated only by the
// roster and promotion services.
type Student struct {
	ID                 string     `db:"id" json:"id"`
	FirstName          string     `db:"first_name" json:"first_name"`
	LastName           string     `db:"last_name" json:"last_name"`
	RollNumber         *string    `db:"roll_number" json:"roll_number,omitempty"`
	UserID             *string    `db:"user_id" json:"user_id,omitempty"`
	ClassID            *string    `db:"class_id" json:"class_id,omitempty"`
	ScanToken          *string    `db:"scan_token" json:"-"`
	ScanTokenIssuedAt  *time.Time `db:"scan_token_issued_at" json:"-"`
	ScanTokenExpiresAt *time.Time `db:"scan_token_expires_at" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts for display.
func (s *Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentDetail extends Student with the resolved class name.
type StudentDetail struct {
	Student
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
