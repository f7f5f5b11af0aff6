package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/patient-records/internal/model"
)

type (
	// PatientRepository is the patient record store. Every method is one
	// SQL statement.
	PatientRepository interface {
		Initialize(ctx context.Context) error
		Insert(ctx context.Context, patient *model.Patient) (int64, error)
		FindAll(ctx context.Context) ([]*model.Patient, error)
		FindByPid(ctx context.Context, pid string) (*model.Patient, error)
		Update(ctx context.Context, id int64, fields []model.PatientField) (int64, error)
		DeleteByID(ctx context.Context, id int64) (int64, error)
		Ping(ctx context.Context) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id string) error
		MarkFailed(ctx context.Context, id string, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
