package patient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/internal/repository"
	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
)

var (
	_ repository.PatientRepository = (*mockPatientRepo)(nil)
	_ repository.OutboxRepository  = (*mockOutboxRepo)(nil)
)

type mockPatientRepo struct {
	mock.Mock
}

func (m *mockPatientRepo) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPatientRepo) Insert(ctx context.Context, p *model.Patient) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPatientRepo) FindAll(ctx context.Context) ([]*model.Patient, error) {
	args := m.Called(ctx)
	patients, _ := args.Get(0).([]*model.Patient)
	return patients, args.Error(1)
}

func (m *mockPatientRepo) FindByPid(ctx context.Context, pid string) (*model.Patient, error) {
	args := m.Called(ctx, pid)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func (m *mockPatientRepo) Update(ctx context.Context, id int64, fields []model.PatientField) (int64, error) {
	args := m.Called(ctx, id, fields)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPatientRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPatientRepo) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	return events, args.Error(1)
}

func (m *mockOutboxRepo) MarkProcessed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func fixedNow() time.Time {
	return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
}

func TestCreatePatient_StampsCreatedAt(t *testing.T) {
	repo := new(mockPatientRepo)
	svc := NewService(repo, nil, nil)
	svc.now = fixedNow

	repo.On("Insert", mock.Anything, mock.MatchedBy(func(p *model.Patient) bool {
		return p.PID == "PID-2026-0001" && p.Age == 30 && p.CreatedAt == "2026-10-19T08:00:00.000Z"
	})).Return(int64(1), nil)

	resp, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		PID:    "PID-2026-0001",
		Name:   "John Doe",
		Age:    intPtr(30),
		Gender: "Male",
	})
	require.NoError(t, err)
	assert.Equal(t, &model.CreatePatientResponse{ID: 1, PID: "PID-2026-0001"}, resp)
	repo.AssertExpectations(t)
}

func TestCreatePatient_NormalisesClientCreatedAt(t *testing.T) {
	repo := new(mockPatientRepo)
	svc := NewService(repo, nil, nil)

	repo.On("Insert", mock.Anything, mock.MatchedBy(func(p *model.Patient) bool {
		return p.CreatedAt == "2026-03-01T07:30:00.000Z"
	})).Return(int64(3), nil)

	_, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		PID:       "PID-3",
		Name:      "Jane Roe",
		Age:       intPtr(52),
		Gender:    "Female",
		CreatedAt: strPtr("2026-03-01T09:30:00+02:00"),
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCreatePatient_BadCreatedAt(t *testing.T) {
	repo := new(mockPatientRepo)
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		PID:       "PID-3",
		Name:      "Jane Roe",
		Age:       intPtr(52),
		Gender:    "Female",
		CreatedAt: strPtr("yesterday"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindBadRequest))
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreatePatient_ConstraintViolationPassesThrough(t *testing.T) {
	repo := new(mockPatientRepo)
	outbox := new(mockOutboxRepo)
	svc := NewService(repo, outbox, nil)

	driverErr := errors.New("UNIQUE constraint failed: patients.pid")
	repo.On("Insert", mock.Anything, mock.Anything).Return(int64(0), apperrors.ConstraintViolation(driverErr))

	_, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		PID: "PID-1", Name: "A", Age: intPtr(1), Gender: "Male",
	})
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConstraintViolation, appErr.Kind)
	assert.Equal(t, "UNIQUE constraint failed: patients.pid", appErr.Message)
	outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreatePatient_AppendsEvent(t *testing.T) {
	repo := new(mockPatientRepo)
	outbox := new(mockOutboxRepo)
	svc := NewService(repo, outbox, nil)

	repo.On("Insert", mock.Anything, mock.Anything).Return(int64(5), nil)
	outbox.On("Create", mock.Anything, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		var evt model.PatientEvent
		return e.EventType == model.EventPatientCreated &&
			json.Unmarshal(e.Payload, &evt) == nil &&
			evt.ID == 5 && evt.PID == "PID-5"
	})).Return(nil)

	_, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		PID: "PID-5", Name: "A", Age: intPtr(1), Gender: "Male",
		FileData: strPtr("data:application/pdf;base64,JVBERg=="),
	})
	require.NoError(t, err)
	outbox.AssertExpectations(t)

	payload := outbox.Calls[0].Arguments.Get(1).(*model.OutboxEvent).Payload
	assert.NotContains(t, string(payload), "JVBERg")
}

func TestCreatePatient_OutboxFailureIsNotFatal(t *testing.T) {
	repo := new(mockPatientRepo)
	outbox := new(mockOutboxRepo)
	svc := NewService(repo, outbox, nil)

	repo.On("Insert", mock.Anything, mock.Anything).Return(int64(5), nil)
	outbox.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	resp, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		PID: "PID-5", Name: "A", Age: intPtr(1), Gender: "Male",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.ID)
}

func TestUpdatePatient(t *testing.T) {
	repo := new(mockPatientRepo)
	outbox := new(mockOutboxRepo)
	svc := NewService(repo, outbox, nil)

	expected := []model.PatientField{
		{Column: "name", Value: "John A. Doe"},
		{Column: "age", Value: 31},
		{Column: "file_name", Value: "scan.pdf"},
	}
	repo.On("Update", mock.Anything, int64(1), expected).Return(int64(1), nil)
	outbox.On("Create", mock.Anything, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		var evt model.PatientEvent
		return e.EventType == model.EventPatientUpdated &&
			json.Unmarshal(e.Payload, &evt) == nil &&
			assert.ObjectsAreEqual([]string{"name", "age", "fileName"}, evt.Fields)
	})).Return(nil)

	changes, err := svc.UpdatePatient(context.Background(), 1, &model.UpdatePatientRequest{
		Name:     strPtr("John A. Doe"),
		Age:      intPtr(31),
		FileName: strPtr("scan.pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changes)
	repo.AssertExpectations(t)
	outbox.AssertExpectations(t)
}

func TestUpdatePatient_NoFields(t *testing.T) {
	repo := new(mockPatientRepo)
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdatePatient(context.Background(), 1, &model.UpdatePatientRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindBadRequest))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdatePatient_UnknownIDSkipsEvent(t *testing.T) {
	repo := new(mockPatientRepo)
	outbox := new(mockOutboxRepo)
	svc := NewService(repo, outbox, nil)

	repo.On("Update", mock.Anything, int64(99), mock.Anything).Return(int64(0), nil)

	changes, err := svc.UpdatePatient(context.Background(), 99, &model.UpdatePatientRequest{Name: strPtr("x")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), changes)
	outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDeletePatient(t *testing.T) {
	repo := new(mockPatientRepo)
	outbox := new(mockOutboxRepo)
	svc := NewService(repo, outbox, nil)

	repo.On("DeleteByID", mock.Anything, int64(1)).Return(int64(1), nil).Once()
	repo.On("DeleteByID", mock.Anything, int64(1)).Return(int64(0), nil).Once()
	outbox.On("Create", mock.Anything, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		return e.EventType == model.EventPatientDeleted
	})).Return(nil).Once()

	changes, err := svc.DeletePatient(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changes)

	changes, err = svc.DeletePatient(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), changes)

	outbox.AssertNumberOfCalls(t, "Create", 1)
}

func TestGetPatient_NotFound(t *testing.T) {
	repo := new(mockPatientRepo)
	svc := NewService(repo, nil, nil)

	repo.On("FindByPid", mock.Anything, "PID-X").Return(nil, apperrors.NotFound("patient", nil))

	_, err := svc.GetPatient(context.Background(), "PID-X")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestListPatients_StoreFailure(t *testing.T) {
	repo := new(mockPatientRepo)
	svc := NewService(repo, nil, nil)

	repo.On("FindAll", mock.Anything).Return(nil, apperrors.StoreFailure(errors.New("disk I/O error")))

	_, err := svc.ListPatients(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindStoreFailure))
}
