package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/dto"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/repository"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
)

type fakeClassLedgers struct {
	byID    map[string]*models.ClassAttendanceLedger
	byKey   map[string]*models.ClassAttendanceLedger
	upserts int
	fail    bool
}

func classKey(classID string, day time.Time) string {
	return fmt.Sprintf("%s|%s", classID, day.Format("2006-01-02"))
}

func newFakeClassLedgers() *fakeClassLedgers {
	return &fakeClassLedgers{
		byID:  make(map[string]*models.ClassAttendanceLedger),
		byKey: make(map[string]*models.ClassAttendanceLedger),
	}
}

func (f *fakeClassLedgers) FindByID(ctx context.Context, id string) (*models.ClassAttendanceLedger, error) {
	if l, ok := f.byID[id]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassLedgers) FindByKey(ctx context.Context, classID string, day time.Time) (*models.ClassAttendanceLedger, error) {
	if l, ok := f.byKey[classKey(classID, day)]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassLedgers) List(ctx context.Context, classID string, from, to *time.Time) ([]models.ClassAttendanceLedger, error) {
	out := []models.ClassAttendanceLedger{}
	for _, l := range f.byID {
		if l.ClassID != classID {
			continue
		}
		if from != nil && l.Day.Before(*from) {
			continue
		}
		if to != nil && l.Day.After(*to) {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeClassLedgers) Create(ctx context.Context, ledger *models.ClassAttendanceLedger) error {
	key := classKey(ledger.ClassID, ledger.Day)
	if _, exists := f.byKey[key]; exists {
		return repository.ErrDuplicateLedger
	}
	f.byID[ledger.ID] = ledger
	f.byKey[key] = ledger
	return nil
}

func (f *fakeClassLedgers) ReplaceRecords(ctx context.Context, id string, records models.AttendanceRecords) error {
	l, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	l.Records = records
	return nil
}

func (f *fakeClassLedgers) UpsertEntry(ctx context.Context, classID string, day time.Time, studentID string, status models.AttendanceStatus) (*models.LedgerUpsert, error) {
	if f.fail {
		return nil, errors.New("write failed")
	}
	f.upserts++
	key := classKey(classID, day)
	ledger, ok := f.byKey[key]
	if !ok {
		ledger = &models.ClassAttendanceLedger{ID: fmt.Sprintf("led-%d", len(f.byID)+1), ClassID: classID, Day: day}
		f.byID[ledger.ID] = ledger
		f.byKey[key] = ledger
	}
	var previous *models.AttendanceStatus
	if prior, found := ledger.Records.StatusOf(studentID); found {
		p := prior
		previous = &p
		for i := range ledger.Records {
			if ledger.Records[i].StudentID == studentID {
				ledger.Records[i].Status = status
			}
		}
	} else {
		ledger.Records = append(ledger.Records, models.AttendanceEntry{StudentID: studentID, Status: status})
	}
	return &models.LedgerUpsert{LedgerID: ledger.ID, Day: day, Status: status, Previous: previous}, nil
}

type fakeTransportLedgers struct {
	byKey map[string]*models.TransportAttendanceLedger
}

func transportKey(busID string, day time.Time, session models.TransportSession) string {
	return fmt.Sprintf("%s|%s|%s", busID, day.Format("2006-01-02"), session)
}

func newFakeTransportLedgers() *fakeTransportLedgers {
	return &fakeTransportLedgers{byKey: make(map[string]*models.TransportAttendanceLedger)}
}

func (f *fakeTransportLedgers) FindByKey(ctx context.Context, busID string, day time.Time, session models.TransportSession) (*models.TransportAttendanceLedger, error) {
	if l, ok := f.byKey[transportKey(busID, day, session)]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTransportLedgers) ListByBus(ctx context.Context, busID string, from, to *time.Time) ([]models.TransportAttendanceLedger, error) {
	out := []models.TransportAttendanceLedger{}
	for _, l := range f.byKey {
		if l.BusID == busID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeTransportLedgers) UpsertEntry(ctx context.Context, busID string, day time.Time, session models.TransportSession, studentID string, status models.AttendanceStatus) (*models.LedgerUpsert, error) {
	key := transportKey(busID, day, session)
	ledger, ok := f.byKey[key]
	if !ok {
		ledger = &models.TransportAttendanceLedger{ID: "tl-" + busID, BusID: busID, Day: day, Session: session}
		f.byKey[key] = ledger
	}
	var previous *models.AttendanceStatus
	if prior, found := ledger.Records.StatusOf(studentID); found {
		p := prior
		previous = &p
	} else {
		ledger.Records = append(ledger.Records, models.AttendanceEntry{StudentID: studentID, Status: status})
	}
	return &models.LedgerUpsert{LedgerID: ledger.ID, Day: day, Status: status, Previous: previous}, nil
}

type fakeEvents struct {
	events []models.ScanEvent
	fail   bool
}

func (f *fakeEvents) Append(ctx context.Context, event *models.ScanEvent) error {
	if f.fail {
		return errors.New("append failed")
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEvents) List(ctx context.Context, filter models.ScanEventFilter) ([]models.ScanEvent, int, error) {
	return f.events, len(f.events), nil
}

type fakeAttClasses struct {
	classes map[string]models.Class
}

func (f *fakeAttClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := f.classes[id]; ok {
		out := c
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

type fakeAttStudents struct {
	students []models.StudentDetail
}

func (f *fakeAttStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	out := []models.StudentDetail{}
	for _, s := range f.students {
		if filter.ClassID == "" || (s.ClassID != nil && *s.ClassID == filter.ClassID) {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

type fakeAttBuses struct {
	buses map[string]models.Bus
}

func (f *fakeAttBuses) FindByID(ctx context.Context, id string) (*models.Bus, error) {
	if b, ok := f.buses[id]; ok {
		out := b
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAttBuses) FindByCrewUserID(ctx context.Context, userID string) (*models.Bus, error) {
	for _, b := range f.buses {
		if (b.DriverUserID != nil && *b.DriverUserID == userID) || (b.AttendantUserID != nil && *b.AttendantUserID == userID) {
			out := b
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeCredentials struct {
	student *models.StudentDetail
	err     error
}

func (f *fakeCredentials) Validate(ctx context.Context, raw string) (*models.StudentDetail, *dto.CredentialPayload, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.student, &dto.CredentialPayload{StudentID: f.student.ID, Token: "tok"}, nil
}

type attendanceFixture struct {
	svc       *AttendanceService
	ledgers   *fakeClassLedgers
	transport *fakeTransportLedgers
	events    *fakeEvents
	creds     *fakeCredentials
}

func newAttendanceFixture(now time.Time) *attendanceFixture {
	ledgers := newFakeClassLedgers()
	transport := newFakeTransportLedgers()
	events := &fakeEvents{}
	classes := &fakeAttClasses{classes: map[string]models.Class{
		"c1": {ID: "c1", Name: "5A", HomeroomTeacherID: strPtr("t1"), Roster: []string{"s1", "s2"}},
	}}
	students := &fakeAttStudents{students: []models.StudentDetail{
		{Student: models.Student{ID: "s1", FirstName: "Asha", ClassID: strPtr("c1"), RollNumber: strPtr("1")}},
		{Student: models.Student{ID: "s2", FirstName: "Ravi", ClassID: strPtr("c1"), RollNumber: strPtr("2")}},
	}}
	buses := &fakeAttBuses{buses: map[string]models.Bus{
		"b1": {ID: "b1", Number: "BUS-7", DriverUserID: strPtr("d1"), AttendantUserID: strPtr("a1")},
	}}
	creds := &fakeCredentials{student: &students.students[0]}

	svc := NewAttendanceService(ledgers, transport, events, classes, students, buses, creds, nil, nil, nil)
	svc.now = func() time.Time { return now }
	return &attendanceFixture{svc: svc, ledgers: ledgers, transport: transport, events: events, creds: creds}
}

var testNow = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

func TestMarkClassIsCreateOnce(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	req := dto.MarkClassRequest{
		ClassID: "c1",
		Day:     "2026-03-02",
		Records: []dto.RecordInput{{StudentID: "s1", Status: models.StatusPresent}, {StudentID: "s2", Status: models.StatusAbsent}},
	}

	ledger, err := fx.svc.MarkClass(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Len(t, ledger.Records, 2)
	assert.Equal(t, models.DayKey(testNow), ledger.Day)

	_, err = fx.svc.MarkClass(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMarkClassRejectsUnknownStatus(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	req := dto.MarkClassRequest{
		ClassID: "c1",
		Day:     "2026-03-02",
		Records: []dto.RecordInput{{StudentID: "s1", Status: "late"}},
	}
	_, err := fx.svc.MarkClass(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMarkClassTeacherRestrictions(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	req := dto.MarkClassRequest{
		ClassID: "c1",
		Day:     "2026-03-02",
		Records: []dto.RecordInput{{StudentID: "s1", Status: models.StatusPresent}},
	}

	outsider := &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}
	_, err := fx.svc.MarkClass(context.Background(), req, outsider)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	homeroom := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}
	stale := req
	stale.Day = "2026-03-01"
	_, err = fx.svc.MarkClass(context.Background(), stale, homeroom)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.MarkClass(context.Background(), req, homeroom)
	assert.NoError(t, err)
}

func TestUpdateLedgerReplacesRecords(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	ledger, err := fx.svc.MarkClass(context.Background(), dto.MarkClassRequest{
		ClassID: "c1",
		Day:     "2026-03-02",
		Records: []dto.RecordInput{{StudentID: "s1", Status: models.StatusAbsent}},
	}, nil)
	require.NoError(t, err)

	updated, err := fx.svc.UpdateLedger(context.Background(), ledger.ID, dto.UpdateLedgerRequest{
		Records: []dto.RecordInput{{StudentID: "s1", Status: models.StatusPresent}, {StudentID: "s2", Status: models.StatusPresent}},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, updated.Records, 2)
	status, _ := updated.Records.StatusOf("s1")
	assert.Equal(t, models.StatusPresent, status)
}

func TestRecordScanTeacherRoutesToClassLedger(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	resp, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, teacher)
	require.NoError(t, err)
	require.NotNil(t, resp.Ledger)
	assert.Nil(t, resp.Ledger.Previous)
	assert.Equal(t, models.StatusPresent, resp.Ledger.Status)
	assert.Equal(t, models.DayKey(testNow), resp.Ledger.Day)

	require.Len(t, fx.events.events, 1)
	assert.Equal(t, models.ScanKindDaily, fx.events.events[0].Kind)
	assert.Equal(t, "t1", fx.events.events[0].ScannerID)
}

func TestRecordScanIsIdempotentPerDay(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	first, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, teacher)
	require.NoError(t, err)
	second, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, teacher)
	require.NoError(t, err)

	assert.Nil(t, first.Ledger.Previous)
	require.NotNil(t, second.Ledger.Previous)
	assert.Equal(t, models.StatusPresent, *second.Ledger.Previous)
	assert.Equal(t, first.Ledger.LedgerID, second.Ledger.LedgerID, "same day hits the same ledger")
	// Both scans are separately audited.
	assert.Len(t, fx.events.events, 2)
}

func TestRecordScanNormalizesDayAcrossTimezones(t *testing.T) {
	late := time.Date(2026, 3, 2, 23, 45, 0, 0, time.FixedZone("IST", 5*3600+1800))
	fx := newAttendanceFixture(late)
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	resp, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, teacher)
	require.NoError(t, err)
	assert.Equal(t, models.DayKey(late), resp.Ledger.Day)
	assert.Equal(t, time.UTC, resp.Ledger.Day.Location())
}

func TestRecordScanDriverRoutesToTransportLedger(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	driver := &models.JWTClaims{UserID: "d1", Role: models.RoleDriver}

	resp, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr", Session: models.SessionEvening}, driver)
	require.NoError(t, err)
	require.NotNil(t, resp.Ledger)

	stored, err := fx.transport.FindByKey(context.Background(), "b1", models.DayKey(testNow), models.SessionEvening)
	require.NoError(t, err)
	status, ok := stored.Records.StatusOf("s1")
	assert.True(t, ok)
	assert.Equal(t, models.StatusPresent, status)
	assert.Equal(t, models.ScanKindDropoff, fx.events.events[0].Kind)
}

func TestRecordScanRejectsNonScanningRoles(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	admin := &models.JWTClaims{UserID: "adm", Role: models.RoleAdmin}

	_, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, admin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fx.events.events)
}

func TestRecordScanReportsLedgerFailureWithoutLosingAudit(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	fx.ledgers.fail = true
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	resp, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, teacher)
	require.NoError(t, err, "ledger failure is reported, not raised")
	assert.Nil(t, resp.Ledger)
	assert.NotEmpty(t, resp.LedgerError)
	assert.Len(t, fx.events.events, 1)
}

func TestRecordScanUnassignedStudentKeepsAudit(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	fx.creds.student = &models.StudentDetail{Student: models.Student{ID: "s9", FirstName: "Kiran"}}
	teacher := &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}

	_, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, teacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Len(t, fx.events.events, 1, "the attempt is audited even when routing fails")
	assert.Equal(t, 0, fx.ledgers.upserts)
}

func TestRecordScanDriverWithoutBus(t *testing.T) {
	fx := newAttendanceFixture(testNow)
	driver := &models.JWTClaims{UserID: "d9", Role: models.RoleDriver}

	_, err := fx.svc.RecordScan(context.Background(), dto.ScanRequest{Raw: "qr"}, driver)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassReportAggregatesPresence(t *testing.T) {
	fx := newAttendanceFixture(testNow)

	_, err := fx.svc.MarkClass(context.Background(), dto.MarkClassRequest{
		ClassID: "c1",
		Day:     "2026-03-02",
		Records: []dto.RecordInput{{StudentID: "s1", Status: models.StatusPresent}, {StudentID: "s2", Status: models.StatusAbsent}},
	}, nil)
	require.NoError(t, err)
	_, err = fx.svc.MarkClass(context.Background(), dto.MarkClassRequest{
		ClassID: "c1",
		Day:     "2026-03-03",
		Records: []dto.RecordInput{{StudentID: "s1", Status: models.StatusPresent}, {StudentID: "s2", Status: models.StatusPresent}},
	}, nil)
	require.NoError(t, err)

	report, err := fx.svc.ClassReport(context.Background(),
		"c1",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	byID := map[string]dto.ReportRow{}
	for _, row := range report.Rows {
		byID[row.StudentID] = row
	}
	assert.Equal(t, 2, byID["s1"].PresentDays)
	assert.InDelta(t, 100.0, byID["s1"].Percentage, 0.01)
	assert.Equal(t, 1, byID["s2"].PresentDays)
	assert.InDelta(t, 50.0, byID["s2"].Percentage, 0.01)
}

func TestTransportDayReturnsEmptyLedger(t *testing.T) {
	fx := newAttendanceFixture(testNow)

	ledger, err := fx.svc.TransportDay(context.Background(), "b1", testNow, "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionMorning, ledger.Session)
	assert.Empty(t, ledger.Records)
}
