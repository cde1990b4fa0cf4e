package dto

// CreateStudentRequest defines payload for registering a student.
type CreateStudentRequest struct {
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	RollNumber *string `json:"roll_number,omitempty"`
	UserID     *string `json:"user_id,omitempty"`
	// Class may be a class id or a class name; names are resolved to ids.
	Class *string `json:"class,omitempty"`
}

// UpdateStudentRequest defines payload for editing student identity fields.
type UpdateStudentRequest struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	RollNumber *string `json:"roll_number,omitempty"`
	UserID     *string `json:"user_id,omitempty"`
}

// CreateClassRequest defines payload for creating a class.
type CreateClassRequest struct {
	Name              string  `json:"name" validate:"required"`
	Grade             string  `json:"grade" validate:"required"`
	Section           string  `json:"section" validate:"required"`
	PromotionRank     *int    `json:"promotion_rank,omitempty"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id,omitempty"`
}

// UpdateClassRequest defines payload for editing class metadata.
type UpdateClassRequest struct {
	Name              *string `json:"name,omitempty"`
	Grade             *string `json:"grade,omitempty"`
	Section           *string `json:"section,omitempty"`
	PromotionRank     *int    `json:"promotion_rank,omitempty"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id,omitempty"`
}

// SetRosterRequest replaces a class roster with the desired member list.
type SetRosterRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required"`
}

// PromotionResult reports the outcome of a promotion batch run.
type PromotionResult struct {
	Logs []string `json:"logs"`
}
