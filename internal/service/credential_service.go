package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/dto"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
)

// CredentialStudentRepository abstracts student persistence for the scan
// credential lifecycle.
type CredentialStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ListAll(ctx context.Context) ([]models.StudentDetail, error)
	UpdateScanToken(ctx context.Context, id, token string, issuedAt, expiresAt time.Time) error
}

// CredentialService issues and validates scannable student credentials. Each
// student holds at most one active token; issuing a new one invalidates all
// previously issued payloads for that student.
type CredentialService struct {
	students CredentialStudentRepository
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewCredentialService constructs a credential service.
func NewCredentialService(students CredentialStudentRepository, ttl time.Duration, logger *zap.Logger) *CredentialService {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{students: students, ttl: ttl, logger: logger, now: time.Now}
}

// Issue mints a fresh credential for the student, replacing any prior token.
func (s *CredentialService) Issue(ctx context.Context, studentID string) (*dto.IssueCredentialResponse, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.issueFor(ctx, student)
}

// IssueForStudentUser mints a credential for the student linked to the given
// account, used by the student self-service endpoint.
func (s *CredentialService) IssueForStudentUser(ctx context.Context, userID string) (*dto.IssueCredentialResponse, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.issueFor(ctx, student)
}

// IssueAll mints fresh credentials for every enrolled student. Failures for
// individual students are reported per item rather than aborting the batch.
func (s *CredentialService) IssueAll(ctx context.Context) (*dto.BulkIssueResponse, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	result := &dto.BulkIssueResponse{Items: make([]dto.BulkIssueItem, 0, len(students))}
	for i := range students {
		student := students[i]
		item := dto.BulkIssueItem{StudentID: student.ID, StudentName: student.FullName()}
		issued, err := s.issueFor(ctx, &student)
		if err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			item.Raw = issued.Raw
			result.Issued++
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("bulk credential issue completed",
		zap.Int("issued", result.Issued),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Validate decodes a scanned credential and checks it against the student's
// stored token. Any decode failure, token mismatch, or expiry yields an
// invalid-credential error; a credential is accepted up to and including its
// expiry instant.
func (s *CredentialService) Validate(ctx context.Context, raw string) (*models.StudentDetail, *dto.CredentialPayload, error) {
	payload, err := decodeCredentialPayload(raw)
	if err != nil {
		return nil, nil, err
	}
	if payload.StudentID == "" || payload.Token == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential payload is incomplete")
	}

	student, err := s.students.FindByID(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential does not match an enrolled student")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if student.ScanToken == nil || *student.ScanToken != payload.Token {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential has been superseded or revoked")
	}
	if student.ScanTokenExpiresAt != nil && s.now().UTC().After(*student.ScanTokenExpiresAt) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidCredential, "credential has expired")
	}

	return student, payload, nil
}

func (s *CredentialService) issueFor(ctx context.Context, student *models.StudentDetail) (*dto.IssueCredentialResponse, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credential token")
	}
	token := hex.EncodeToString(buf)

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)

	if err := s.students.UpdateScanToken(ctx, student.ID, token, issuedAt, expiresAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist credential token")
	}

	payload := dto.CredentialPayload{
		StudentID:  student.ID,
		Token:      token,
		RollNumber: student.RollNumber,
		ClassID:    student.ClassID,
		ClassName:  student.ClassName,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode credential payload")
	}

	s.logger.Info("credential issued",
		zap.String("student_id", student.ID),
		zap.Time("expires_at", expiresAt))

	return &dto.IssueCredentialResponse{
		Raw:       base64.StdEncoding.EncodeToString(encoded),
		Payload:   payload,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// decodeCredentialPayload accepts both the base64 display encoding produced
// by issueFor and a bare JSON payload typed or pasted directly.
func decodeCredentialPayload(raw string) (*dto.CredentialPayload, error) {
	var payload dto.CredentialPayload
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if err := json.Unmarshal(decoded, &payload); err == nil {
			return &payload, nil
		}
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "unable to decode credential payload")
	}
	return &payload, nil
}
