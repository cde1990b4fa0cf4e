package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/dto"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/repository"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/export"
)

// ClassLedgerRepository abstracts the per-class daily ledger store.
type ClassLedgerRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassAttendanceLedger, error)
	FindByKey(ctx context.Context, classID string, day time.Time) (*models.ClassAttendanceLedger, error)
	List(ctx context.Context, classID string, from, to *time.Time) ([]models.ClassAttendanceLedger, error)
	Create(ctx context.Context, ledger *models.ClassAttendanceLedger) error
	ReplaceRecords(ctx context.Context, id string, records models.AttendanceRecords) error
	UpsertEntry(ctx context.Context, classID string, day time.Time, studentID string, status models.AttendanceStatus) (*models.LedgerUpsert, error)
}

// TransportLedgerRepository abstracts the per-bus session ledger store.
type TransportLedgerRepository interface {
	FindByKey(ctx context.Context, busID string, day time.Time, session models.TransportSession) (*models.TransportAttendanceLedger, error)
	ListByBus(ctx context.Context, busID string, from, to *time.Time) ([]models.TransportAttendanceLedger, error)
	UpsertEntry(ctx context.Context, busID string, day time.Time, session models.TransportSession, studentID string, status models.AttendanceStatus) (*models.LedgerUpsert, error)
}

// ScanEventStore abstracts the append-only scan audit trail.
type ScanEventStore interface {
	Append(ctx context.Context, event *models.ScanEvent) error
	List(ctx context.Context, filter models.ScanEventFilter) ([]models.ScanEvent, int, error)
}

// AttendanceClassRepository resolves classes for attendance operations.
type AttendanceClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// AttendanceStudentRepository resolves class members for reporting.
type AttendanceStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

// AttendanceBusRepository resolves buses for transport scans.
type AttendanceBusRepository interface {
	FindByID(ctx context.Context, id string) (*models.Bus, error)
	FindByCrewUserID(ctx context.Context, userID string) (*models.Bus, error)
}

// CredentialValidator checks a scanned credential and resolves its student.
type CredentialValidator interface {
	Validate(ctx context.Context, raw string) (*models.StudentDetail, *dto.CredentialPayload, error)
}

// AttendanceService owns the daily and transport attendance ledgers, the
// scan recording pipeline, and attendance reporting.
type AttendanceService struct {
	classLedgers     ClassLedgerRepository
	transportLedgers TransportLedgerRepository
	events           ScanEventStore
	classes          AttendanceClassRepository
	students         AttendanceStudentRepository
	buses            AttendanceBusRepository
	credentials      CredentialValidator
	cache            *CacheService
	metrics          *MetricsService
	csvExporter      *export.CSVExporter
	pdfExporter      *export.PDFExporter
	validator        *validator.Validate
	logger           *zap.Logger
	now              func() time.Time
}

// NewAttendanceService constructs an attendance service.
func NewAttendanceService(
	classLedgers ClassLedgerRepository,
	transportLedgers TransportLedgerRepository,
	events ScanEventStore,
	classes AttendanceClassRepository,
	students AttendanceStudentRepository,
	buses AttendanceBusRepository,
	credentials CredentialValidator,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		classLedgers:     classLedgers,
		transportLedgers: transportLedgers,
		events:           events,
		classes:          classes,
		students:         students,
		buses:            buses,
		credentials:      credentials,
		cache:            cache,
		metrics:          metrics,
		csvExporter:      export.NewCSVExporter(),
		pdfExporter:      export.NewPDFExporter(),
		validator:        validator.New(),
		logger:           logger,
		now:              time.Now,
	}
}

// MarkClass records a full day's statuses for a class. Marking is
// create-once per (class, day); corrections go through UpdateLedger.
// Teachers may only mark their own homeroom class and only for today.
func (s *AttendanceService) MarkClass(ctx context.Context, req dto.MarkClassRequest, actor *models.JWTClaims) (*models.ClassAttendanceLedger, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	day, err := parseDay(req.Day)
	if err != nil {
		return nil, err
	}
	records, err := buildRecords(req.Records)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if err := s.checkTeacherMarking(actor, class, day); err != nil {
		return nil, err
	}

	nowTime := s.now().UTC()
	ledger := &models.ClassAttendanceLedger{
		ID:        uuid.NewString(),
		ClassID:   class.ID,
		Day:       day,
		Records:   records,
		CreatedAt: nowTime,
		UpdatedAt: nowTime,
	}
	if err := s.classLedgers.Create(ctx, ledger); err != nil {
		if errors.Is(err, repository.ErrDuplicateLedger) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for this class and day")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance ledger")
	}

	s.invalidateReports(ctx, class.ID)
	s.logger.Info("attendance marked",
		zap.String("class_id", class.ID),
		zap.Time("day", day),
		zap.Int("records", len(records)))
	return ledger, nil
}

// UpdateLedger fully replaces the record list of an existing ledger.
// Teachers remain restricted to their homeroom class and the current day.
func (s *AttendanceService) UpdateLedger(ctx context.Context, ledgerID string, req dto.UpdateLedgerRequest, actor *models.JWTClaims) (*models.ClassAttendanceLedger, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	records, err := buildRecords(req.Records)
	if err != nil {
		return nil, err
	}

	ledger, err := s.classLedgers.FindByID(ctx, ledgerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}

	class, err := s.classes.FindByID(ctx, ledger.ClassID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.checkTeacherMarking(actor, class, models.DayKey(ledger.Day)); err != nil {
		return nil, err
	}

	if err := s.classLedgers.ReplaceRecords(ctx, ledger.ID, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ledger records")
	}

	s.invalidateReports(ctx, ledger.ClassID)
	updated, err := s.classLedgers.FindByID(ctx, ledger.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload ledger")
	}
	return updated, nil
}

// GetLedger fetches a single class ledger by id.
func (s *AttendanceService) GetLedger(ctx context.Context, id string) (*models.ClassAttendanceLedger, error) {
	ledger, err := s.classLedgers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	return ledger, nil
}

// ListClassLedgers returns a class's ledgers inside an optional date range.
func (s *AttendanceService) ListClassLedgers(ctx context.Context, filter dto.LedgerFilter) ([]models.ClassAttendanceLedger, error) {
	if _, err := s.classes.FindByID(ctx, filter.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	ledgers, err := s.classLedgers.List(ctx, filter.ClassID, filter.From, filter.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledgers")
	}
	return ledgers, nil
}

// RecordScan processes one credential scan end to end: validate the
// credential, append the audit event, then apply the role-routed ledger
// upsert. The audit event is written before any ledger mutation; a ledger
// failure after that point is reported in the response, not raised.
func (s *AttendanceService) RecordScan(ctx context.Context, req dto.ScanRequest, actor *models.JWTClaims) (*dto.ScanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scan payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	role := actor.Role
	if role != models.RoleTeacher && !role.TransportRole() {
		s.countScan(role, "forbidden")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role not permitted to record scans")
	}

	session := req.Session
	if session == "" {
		session = models.SessionMorning
	}
	if !session.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown transport session")
	}
	kind, err := resolveScanKind(req.Kind, role, session)
	if err != nil {
		return nil, err
	}

	student, payload, err := s.credentials.Validate(ctx, req.Raw)
	if err != nil {
		s.countScan(role, "rejected")
		return nil, err
	}

	rawPayload, merr := json.Marshal(payload)
	if merr != nil {
		rawPayload = []byte(req.Raw)
	}
	nowTime := s.now().UTC()
	event := &models.ScanEvent{
		ID:          uuid.NewString(),
		StudentID:   student.ID,
		ClassID:     student.ClassID,
		ScannerID:   actor.UserID,
		ScannerRole: role,
		Kind:        kind,
		OccurredAt:  nowTime,
		RawPayload:  rawPayload,
		CreatedAt:   nowTime,
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.countScan(role, "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record scan event")
	}

	resp := &dto.ScanResponse{
		EventID: event.ID,
		Student: dto.ScanStudent{
			ID:         student.ID,
			FullName:   student.FullName(),
			RollNumber: student.RollNumber,
			ClassID:    student.ClassID,
			ClassName:  student.ClassName,
		},
	}

	day := models.DayKey(nowTime)
	var upsert *models.LedgerUpsert
	var ledgerErr error
	if role == models.RoleTeacher {
		if student.ClassID == nil {
			s.countScan(role, "unrouted")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not assigned to a class")
		}
		upsert, ledgerErr = s.classLedgers.UpsertEntry(ctx, *student.ClassID, day, student.ID, models.StatusPresent)
	} else {
		bus, berr := s.buses.FindByCrewUserID(ctx, actor.UserID)
		if berr != nil {
			if errors.Is(berr, sql.ErrNoRows) {
				s.countScan(role, "unrouted")
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no bus assigned to this account")
			}
			return nil, appErrors.Wrap(berr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve bus")
		}
		upsert, ledgerErr = s.transportLedgers.UpsertEntry(ctx, bus.ID, day, session, student.ID, models.StatusPresent)
	}

	if ledgerErr != nil {
		s.countScan(role, "ledger_failed")
		s.logger.Warn("scan recorded but ledger write failed",
			zap.String("event_id", event.ID),
			zap.String("student_id", student.ID),
			zap.Error(ledgerErr))
		resp.LedgerError = "attendance ledger could not be updated"
		return resp, nil
	}

	resp.Ledger = upsert
	s.countScan(role, "accepted")
	if student.ClassID != nil {
		s.invalidateReports(ctx, *student.ClassID)
	}
	return resp, nil
}

// ClassReport aggregates per-student presence over a date range. Results are
// cached per (class, range) and invalidated on every ledger write.
func (s *AttendanceService) ClassReport(ctx context.Context, classID string, from, to time.Time) (*dto.ClassReport, error) {
	from = models.DayKey(from)
	to = models.DayKey(to)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report range end precedes start")
	}

	cacheKey := fmt.Sprintf("report:class:%s:%s:%s", classID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if s.cache != nil {
		var cached dto.ClassReport
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	ledgers, err := s.classLedgers.List(ctx, class.ID, &from, &to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledgers")
	}

	members, _, err := s.students.List(ctx, models.StudentFilter{ClassID: class.ID, PageSize: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class members")
	}

	report := &dto.ClassReport{
		ClassID:   class.ID,
		ClassName: class.Name,
		From:      from,
		To:        to,
		Rows:      make([]dto.ReportRow, 0, len(members)),
	}
	for i := range members {
		member := members[i]
		row := dto.ReportRow{
			StudentID:   member.ID,
			StudentName: member.FullName(),
			TotalDays:   len(ledgers),
		}
		if member.RollNumber != nil {
			row.RollNumber = *member.RollNumber
		}
		for _, ledger := range ledgers {
			if status, ok := ledger.Records.StatusOf(member.ID); ok && status == models.StatusPresent {
				row.PresentDays++
			}
		}
		if row.TotalDays > 0 {
			row.Percentage = math.Round(float64(row.PresentDays)/float64(row.TotalDays)*10000) / 100
		}
		report.Rows = append(report.Rows, row)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, report, 0)
	}
	return report, nil
}

// ExportClassReport renders a class report as CSV or PDF bytes.
func (s *AttendanceService) ExportClassReport(ctx context.Context, classID string, from, to time.Time, format string) ([]byte, string, string, error) {
	report, err := s.ClassReport(ctx, classID, from, to)
	if err != nil {
		return nil, "", "", err
	}

	table := export.Table{
		Title:    fmt.Sprintf("Attendance Report %s", report.ClassName),
		Subtitle: fmt.Sprintf("%s to %s", report.From.Format("2006-01-02"), report.To.Format("2006-01-02")),
		Columns: []export.Column{
			{Name: "Roll Number", Width: 1, Align: "C"},
			{Name: "Student", Width: 2.5},
			{Name: "Present Days", Width: 1, Align: "R"},
			{Name: "Total Days", Width: 1, Align: "R"},
			{Name: "Percentage", Width: 1, Align: "R"},
		},
	}
	var presentSum, totalSum int
	for _, row := range report.Rows {
		presentSum += row.PresentDays
		totalSum += row.TotalDays
		table.Rows = append(table.Rows, []string{
			row.RollNumber,
			row.StudentName,
			fmt.Sprintf("%d", row.PresentDays),
			fmt.Sprintf("%d", row.TotalDays),
			fmt.Sprintf("%.2f%%", row.Percentage),
		})
	}
	average := 0.0
	if totalSum > 0 {
		average = float64(presentSum) / float64(totalSum) * 100
	}
	table.Footer = []string{"", "Class total", fmt.Sprintf("%d", presentSum), fmt.Sprintf("%d", totalSum), fmt.Sprintf("%.2f%%", average)}

	stamp := fmt.Sprintf("%s_%s", report.From.Format("20060102"), report.To.Format("20060102"))

	switch format {
	case "csv":
		payload, err := s.csvExporter.Render(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return payload, "text/csv", fmt.Sprintf("attendance_%s_%s.csv", report.ClassName, stamp), nil
	case "pdf":
		payload, err := s.pdfExporter.Render(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return payload, "application/pdf", fmt.Sprintf("attendance_%s_%s.pdf", report.ClassName, stamp), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// TransportDay returns one bus session ledger, empty when nothing has been
// recorded yet.
func (s *AttendanceService) TransportDay(ctx context.Context, busID string, day time.Time, session models.TransportSession) (*models.TransportAttendanceLedger, error) {
	if session == "" {
		session = models.SessionMorning
	}
	if !session.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown transport session")
	}
	bus, err := s.buses.FindByID(ctx, busID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bus not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bus")
	}

	key := models.DayKey(day)
	ledger, err := s.transportLedgers.FindByKey(ctx, bus.ID, key, session)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.TransportAttendanceLedger{
				BusID:   bus.ID,
				Day:     key,
				Session: session,
				Records: models.AttendanceRecords{},
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transport ledger")
	}
	return ledger, nil
}

// ListTransportLedgers returns a bus's ledgers inside an optional date range.
func (s *AttendanceService) ListTransportLedgers(ctx context.Context, busID string, from, to *time.Time) ([]models.TransportAttendanceLedger, error) {
	if _, err := s.buses.FindByID(ctx, busID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bus not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bus")
	}
	ledgers, err := s.transportLedgers.ListByBus(ctx, busID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transport ledgers")
	}
	return ledgers, nil
}

// ListScanEvents pages through the scan audit trail.
func (s *AttendanceService) ListScanEvents(ctx context.Context, filter models.ScanEventFilter) ([]models.ScanEvent, int, error) {
	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scan events")
	}
	return events, total, nil
}

// checkTeacherMarking enforces the homeroom and same-day restrictions for
// teacher-initiated ledger writes. Admins pass unconditionally.
func (s *AttendanceService) checkTeacherMarking(actor *models.JWTClaims, class *models.Class, day time.Time) error {
	if actor == nil || actor.Role != models.RoleTeacher {
		return nil
	}
	if class == nil || class.HomeroomTeacherID == nil || *class.HomeroomTeacherID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the homeroom teacher can mark this class")
	}
	if !day.Equal(models.DayKey(s.now())) {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers can only mark attendance for today")
	}
	return nil
}

func (s *AttendanceService) invalidateReports(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("report:class:%s:*", classID)); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.String("class_id", classID), zap.Error(err))
	}
}

func (s *AttendanceService) countScan(role models.UserRole, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordScan(string(role), outcome)
	}
}

func parseDay(value string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "day must be formatted YYYY-MM-DD")
	}
	return models.DayKey(day), nil
}

func buildRecords(inputs []dto.RecordInput) (models.AttendanceRecords, error) {
	if len(inputs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one attendance record is required")
	}
	records := make(models.AttendanceRecords, 0, len(inputs))
	index := make(map[string]int, len(inputs))
	for _, input := range inputs {
		if !input.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", input.Status))
		}
		if pos, ok := index[input.StudentID]; ok {
			records[pos].Status = input.Status
			continue
		}
		index[input.StudentID] = len(records)
		records = append(records, models.AttendanceEntry{StudentID: input.StudentID, Status: input.Status})
	}
	return records, nil
}

func resolveScanKind(kind models.ScanKind, role models.UserRole, session models.TransportSession) (models.ScanKind, error) {
	if kind != "" {
		switch kind {
		case models.ScanKindDaily, models.ScanKindPickup, models.ScanKindDropoff:
			return kind, nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, "unknown scan kind")
		}
	}
	if role == models.RoleTeacher {
		return models.ScanKindDaily, nil
	}
	if session == models.SessionEvening {
		return models.ScanKindDropoff, nil
	}
	return models.ScanKindPickup, nil
}
