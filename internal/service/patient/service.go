package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/internal/repository"
	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
	"github.com/jwalitptl/patient-records/pkg/logger"
)

type PatientService interface {
	ListPatients(ctx context.Context) ([]*model.Patient, error)
	GetPatient(ctx context.Context, pid string) (*model.Patient, error)
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.CreatePatientResponse, error)
	UpdatePatient(ctx context.Context, id int64, req *model.UpdatePatientRequest) (int64, error)
	DeletePatient(ctx context.Context, id int64) (int64, error)
}

// JSON names of updatable columns, used in change events
var fieldNames = map[string]string{
	"file_data": "fileData",
	"file_name": "fileName",
}

type Service struct {
	repo   repository.PatientRepository
	outbox repository.OutboxRepository
	log    *logger.Logger
	now    func() time.Time
}

// NewService wires the patient service. A nil outbox disables change events.
func NewService(repo repository.PatientRepository, outbox repository.OutboxRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		outbox: outbox,
		log:    log,
		now:    time.Now,
	}
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	patients, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) GetPatient(ctx context.Context, pid string) (*model.Patient, error) {
	patient, err := s.repo.FindByPid(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.CreatePatientResponse, error) {
	if req.Age == nil {
		return nil, apperrors.BadRequest("age is required", nil)
	}
	createdAt, err := s.createdAt(req.CreatedAt)
	if err != nil {
		return nil, err
	}

	patient := &model.Patient{
		PID:       req.PID,
		Name:      req.Name,
		Age:       *req.Age,
		Gender:    req.Gender,
		Contact:   req.Contact,
		Weight:    req.Weight,
		Height:    req.Height,
		BP:        req.BP,
		Symptoms:  req.Symptoms,
		History:   req.History,
		FileData:  req.FileData,
		FileName:  req.FileName,
		CreatedAt: createdAt,
	}

	id, err := s.repo.Insert(ctx, patient)
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.publish(ctx, model.EventPatientCreated, model.PatientEvent{ID: id, PID: patient.PID})

	return &model.CreatePatientResponse{ID: id, PID: patient.PID}, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, req *model.UpdatePatientRequest) (int64, error) {
	fields := req.Fields()
	if len(fields) == 0 {
		return 0, apperrors.BadRequest("no updatable fields supplied", nil)
	}

	changes, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return 0, fmt.Errorf("failed to update patient: %w", err)
	}

	if changes > 0 {
		names := make([]string, 0, len(fields))
		for _, f := range fields {
			names = append(names, jsonName(f.Column))
		}
		s.publish(ctx, model.EventPatientUpdated, model.PatientEvent{ID: id, Fields: names})
	}
	return changes, nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) (int64, error) {
	changes, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete patient: %w", err)
	}

	if changes > 0 {
		s.publish(ctx, model.EventPatientDeleted, model.PatientEvent{ID: id})
	}
	return changes, nil
}

// createdAt normalises a client timestamp, or stamps the current time
func (s *Service) createdAt(raw *string) (string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return model.FormatCreatedAt(s.now()), nil
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(*raw))
	if err != nil {
		return "", apperrors.BadRequest("createdAt must be an ISO-8601 timestamp", err)
	}
	return model.FormatCreatedAt(t), nil
}

// publish appends a change event to the outbox. The record change has
// already been committed, so a failure here is logged and dropped.
func (s *Service) publish(ctx context.Context, eventType string, evt model.PatientEvent) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		s.log.Error(err, "failed to marshal patient event", "event_type", eventType, "patient_id", evt.ID)
		return
	}

	err = s.outbox.Create(context.WithoutCancel(ctx), &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		s.log.Error(err, "failed to append patient event", "event_type", eventType, "patient_id", evt.ID)
	}
}

func jsonName(column string) string {
	if name, ok := fieldNames[column]; ok {
		return name
	}
	return column
}
