package attendance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"punchsync/internal/domain"
	"punchsync/internal/notify"
	"punchsync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAttendanceRepo is a mock implementation of repository.AttendanceRepo
type MockAttendanceRepo struct {
	mock.Mock
}

func (m *MockAttendanceRepo) GetForDay(ctx context.Context, personID, schoolID string, attDate time.Time) (*domain.AttendanceRecord, error) {
	args := m.Called(ctx, personID, schoolID, attDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttendanceRecord), args.Error(1)
}

func (m *MockAttendanceRepo) Create(ctx context.Context, rec *domain.AttendanceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockAttendanceRepo) SetCheckOut(ctx context.Context, recordID string, checkOut time.Time, workingHours float64) error {
	args := m.Called(ctx, recordID, checkOut, workingHours)
	return args.Error(0)
}

// MockPeopleRepo is a mock implementation of repository.PeopleRepo
type MockPeopleRepo struct {
	mock.Mock
}

func (m *MockPeopleRepo) ListGuardians(ctx context.Context, personID string) ([]string, error) {
	args := m.Called(ctx, personID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockNotifier is a mock implementation of notify.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, schoolID string, targetPersonIDs []string, kind notify.Kind, data map[string]any) error {
	args := m.Called(ctx, schoolID, targetPersonIDs, kind, data)
	return args.Error(0)
}

const tzIST = 19800 // UTC+5:30

func setupMachine() (*Machine, *MockAttendanceRepo, *MockPeopleRepo, *MockNotifier) {
	attRepo := new(MockAttendanceRepo)
	people := new(MockPeopleRepo)
	notifier := new(MockNotifier)
	m := NewMachine(attRepo, people, notifier, tzIST, zap.NewNop())
	return m, attRepo, people, notifier
}

func studentEvent(t time.Time) domain.ResolvedEvent {
	return domain.ResolvedEvent{
		SchoolID:  "school-1",
		DeviceID:  "device-1",
		Person:    domain.PersonRef{PersonID: "student-1", Kind: domain.StudentLike},
		EventType: domain.EventFingerprint,
		EventTime: t,
	}
}

func staffEvent(t time.Time) domain.ResolvedEvent {
	return domain.ResolvedEvent{
		SchoolID:  "school-1",
		DeviceID:  "device-1",
		Person:    domain.PersonRef{PersonID: "staff-1", Kind: domain.StaffLike},
		EventType: domain.EventCard,
		EventTime: t,
	}
}

func TestApply_StudentFirstPunch_MarksPresent(t *testing.T) {
	m, attRepo, people, notifier := setupMachine()

	eventTime := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC) // 09:30 IST
	wantDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	attRepo.On("GetForDay", mock.Anything, "student-1", "school-1", wantDate).Return(nil, nil)
	attRepo.On("Create", mock.Anything, mock.MatchedBy(func(rec *domain.AttendanceRecord) bool {
		return rec.PersonID == "student-1" &&
			rec.Status == domain.StatusPresent &&
			!rec.CheckInTime.Valid &&
			rec.Remarks.Valid &&
			rec.AttDate.Equal(wantDate)
	})).Return(nil)
	people.On("ListGuardians", mock.Anything, "student-1").Return([]string{"guardian-1", "guardian-2"}, nil)
	notifier.On("Notify", mock.Anything, "school-1",
		[]string{"student-1", "guardian-1", "guardian-2"},
		notify.KindMarkedPresent, mock.Anything).Return(nil)

	err := m.Apply(context.Background(), studentEvent(eventTime))

	require.NoError(t, err)
	attRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestApply_StudentSecondPunch_NoOp(t *testing.T) {
	m, attRepo, _, notifier := setupMachine()

	eventTime := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	existing := &domain.AttendanceRecord{
		RecordID: "rec-1",
		PersonID: "student-1",
		SchoolID: "school-1",
		Status:   domain.StatusPresent,
	}
	attRepo.On("GetForDay", mock.Anything, "student-1", "school-1", mock.Anything).Return(existing, nil)

	err := m.Apply(context.Background(), studentEvent(eventTime))

	require.NoError(t, err)
	attRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	attRepo.AssertNotCalled(t, "SetCheckOut", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_StaffFirstPunch_RecordsCheckIn(t *testing.T) {
	m, attRepo, _, notifier := setupMachine()

	eventTime := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC) // 09:00 IST

	attRepo.On("GetForDay", mock.Anything, "staff-1", "school-1", mock.Anything).Return(nil, nil)
	attRepo.On("Create", mock.Anything, mock.MatchedBy(func(rec *domain.AttendanceRecord) bool {
		return rec.Status == domain.StatusPresent &&
			rec.CheckInTime.Valid &&
			rec.CheckInTime.Time.Equal(eventTime) &&
			!rec.CheckOutTime.Valid
	})).Return(nil)
	notifier.On("Notify", mock.Anything, "school-1", []string{"staff-1"},
		notify.KindCheckedIn, mock.Anything).Return(nil)

	err := m.Apply(context.Background(), staffEvent(eventTime))

	require.NoError(t, err)
	attRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestApply_StaffSecondPunch_ChecksOutWithHours(t *testing.T) {
	m, attRepo, _, notifier := setupMachine()

	checkIn := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)  // 09:00 IST
	checkOut := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC) // 17:00 IST
	existing := &domain.AttendanceRecord{
		RecordID:    "rec-1",
		PersonID:    "staff-1",
		SchoolID:    "school-1",
		Status:      domain.StatusPresent,
		CheckInTime: sql.NullTime{Time: checkIn, Valid: true},
	}

	attRepo.On("GetForDay", mock.Anything, "staff-1", "school-1", mock.Anything).Return(existing, nil)
	attRepo.On("SetCheckOut", mock.Anything, "rec-1", checkOut, 8.0).Return(nil)
	notifier.On("Notify", mock.Anything, "school-1", []string{"staff-1"},
		notify.KindCheckedOut, mock.MatchedBy(func(data map[string]any) bool {
			return data["working_hours"] == 8.0
		})).Return(nil)

	err := m.Apply(context.Background(), staffEvent(checkOut))

	require.NoError(t, err)
	attRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestApply_StaffRepeatedPunch_LastPunchWinsForCheckOut(t *testing.T) {
	m, attRepo, _, notifier := setupMachine()

	checkIn := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)
	firstOut := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	lastOut := time.Date(2026, 3, 2, 12, 45, 0, 0, time.UTC)
	existing := &domain.AttendanceRecord{
		RecordID:     "rec-1",
		PersonID:     "staff-1",
		SchoolID:     "school-1",
		Status:       domain.StatusPresent,
		CheckInTime:  sql.NullTime{Time: checkIn, Valid: true},
		CheckOutTime: sql.NullTime{Time: firstOut, Valid: true},
	}

	attRepo.On("GetForDay", mock.Anything, "staff-1", "school-1", mock.Anything).Return(existing, nil)
	attRepo.On("SetCheckOut", mock.Anything, "rec-1", lastOut, 9.25).Return(nil)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := m.Apply(context.Background(), staffEvent(lastOut))

	require.NoError(t, err)
	attRepo.AssertExpectations(t)
}

func TestApply_OutOfOrderPunch_CannotPlaceCheckOutBeforeCheckIn(t *testing.T) {
	// In-order delivery is a precondition; if it is ever violated, the
	// machine refuses the inverted check-out rather than recording it.
	m, attRepo, _, notifier := setupMachine()

	checkIn := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)
	existing := &domain.AttendanceRecord{
		RecordID:    "rec-1",
		PersonID:    "staff-1",
		SchoolID:    "school-1",
		Status:      domain.StatusPresent,
		CheckInTime: sql.NullTime{Time: checkIn, Valid: true},
	}
	attRepo.On("GetForDay", mock.Anything, "staff-1", "school-1", mock.Anything).Return(existing, nil)

	err := m.Apply(context.Background(), staffEvent(earlier))

	require.NoError(t, err)
	attRepo.AssertNotCalled(t, "SetCheckOut", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_FinalizedDay_NoMutation(t *testing.T) {
	m, attRepo, _, notifier := setupMachine()

	existing := &domain.AttendanceRecord{
		RecordID:  "rec-1",
		PersonID:  "staff-1",
		SchoolID:  "school-1",
		Status:    domain.StatusPresent,
		Finalized: true,
	}
	attRepo.On("GetForDay", mock.Anything, "staff-1", "school-1", mock.Anything).Return(existing, nil)

	err := m.Apply(context.Background(), staffEvent(time.Now().UTC()))

	require.NoError(t, err)
	attRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	attRepo.AssertNotCalled(t, "SetCheckOut", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_NotifierFailure_DoesNotFailTransition(t *testing.T) {
	m, attRepo, people, notifier := setupMachine()

	attRepo.On("GetForDay", mock.Anything, "student-1", "school-1", mock.Anything).Return(nil, nil)
	attRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	people.On("ListGuardians", mock.Anything, "student-1").Return([]string{}, nil)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("delivery system down"))

	err := m.Apply(context.Background(), studentEvent(time.Now().UTC()))

	require.NoError(t, err)
	attRepo.AssertExpectations(t)
}

func TestApply_ConcurrentCreate_TreatedAsCommitted(t *testing.T) {
	m, attRepo, _, notifier := setupMachine()

	attRepo.On("GetForDay", mock.Anything, "staff-1", "school-1", mock.Anything).Return(nil, nil)
	attRepo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)

	err := m.Apply(context.Background(), staffEvent(time.Now().UTC()))

	require.NoError(t, err)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_StorageError_Propagates(t *testing.T) {
	m, attRepo, _, _ := setupMachine()

	attRepo.On("GetForDay", mock.Anything, "staff-1", "school-1", mock.Anything).
		Return(nil, errors.New("connection reset"))

	err := m.Apply(context.Background(), staffEvent(time.Now().UTC()))

	require.Error(t, err)
}

func TestRoundHours(t *testing.T) {
	assert.Equal(t, 8.0, RoundHours(8*time.Hour))
	assert.Equal(t, 8.5, RoundHours(8*time.Hour+30*time.Minute))
	assert.Equal(t, 7.99, RoundHours(7*time.Hour+59*time.Minute+30*time.Second))
	assert.Equal(t, 0.0, RoundHours(0))
}
