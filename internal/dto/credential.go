package dto

import "time"

// CredentialPayload is the decoded content of a scannable credential. It
// round-trips through the imaging channel as base64-encoded JSON, with plain
// JSON accepted as a fallback on decode.
type CredentialPayload struct {
	StudentID  string  `json:"studentId"`
	Token      string  `json:"token"`
	RollNumber *string `json:"rollNumber,omitempty"`
	ClassID    *string `json:"classId,omitempty"`
	ClassName  *string `json:"className,omitempty"`
}

// IssueCredentialResponse returns the encoded credential ready for imaging.
type IssueCredentialResponse struct {
	Raw       string            `json:"raw"`
	Payload   CredentialPayload `json:"payload"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// BulkIssueItem is one student's outcome in a bulk issue run.
type BulkIssueItem struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Raw         string `json:"raw,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BulkIssueResponse reports a bulk credential issue run.
type BulkIssueResponse struct {
	Issued int             `json:"issued"`
	Failed int             `json:"failed"`
	Items  []BulkIssueItem `json:"items"`
}
