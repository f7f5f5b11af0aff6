package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/internal/repository"
	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
	"github.com/jwalitptl/patient-records/pkg/metrics"
)

const patientColumns = `id, pid, name, age, gender, contact, weight, height, bp,
	symptoms, history, file_data, file_name, created_at`

// updatableColumns is the whitelist for Update; id, pid and created_at are
// never written after insert.
var updatableColumns = map[string]bool{
	"name":      true,
	"age":       true,
	"gender":    true,
	"contact":   true,
	"weight":    true,
	"height":    true,
	"bp":        true,
	"symptoms":  true,
	"history":   true,
	"file_data": true,
	"file_name": true,
}

type patientRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

// NewPatientRepository returns the patient store. m may be nil.
func NewPatientRepository(db *sqlx.DB, m *metrics.Metrics) repository.PatientRepository {
	return &patientRepository{db: db, metrics: m}
}

func (r *patientRepository) Initialize(ctx context.Context) (err error) {
	defer r.observe("initialize", time.Now(), &err)

	for _, stmt := range schemaFor(r.db.DriverName()) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.StoreFailure(fmt.Errorf("failed to initialize schema: %w", err))
		}
	}
	return nil
}

func (r *patientRepository) Insert(ctx context.Context, patient *model.Patient) (id int64, err error) {
	defer r.observe("insert", time.Now(), &err)

	query := r.db.Rebind(`
		INSERT INTO patients (
			pid, name, age, gender, contact, weight, height, bp,
			symptoms, history, file_data, file_name, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err = r.db.QueryRowxContext(ctx, query,
		patient.PID,
		patient.Name,
		patient.Age,
		patient.Gender,
		patient.Contact,
		patient.Weight,
		patient.Height,
		patient.BP,
		patient.Symptoms,
		patient.History,
		patient.FileData,
		patient.FileName,
		patient.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}

	patient.ID = id
	return id, nil
}

func (r *patientRepository) FindAll(ctx context.Context) (patients []*model.Patient, err error) {
	defer r.observe("find_all", time.Now(), &err)

	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY created_at DESC, id DESC`

	patients = []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, classify(err)
	}
	return patients, nil
}

func (r *patientRepository) FindByPid(ctx context.Context, pid string) (patient *model.Patient, err error) {
	defer r.observe("find_by_pid", time.Now(), &err)

	query := r.db.Rebind(`SELECT ` + patientColumns + ` FROM patients WHERE pid = ?`)

	var p model.Patient
	if err := r.db.GetContext(ctx, &p, query, pid); err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, classify(err)
	}
	return &p, nil
}

func (r *patientRepository) Update(ctx context.Context, id int64, fields []model.PatientField) (changes int64, err error) {
	defer r.observe("update", time.Now(), &err)

	if len(fields) == 0 {
		return 0, apperrors.BadRequest("no updatable fields supplied", nil)
	}

	sets := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for _, f := range fields {
		if !updatableColumns[f.Column] {
			return 0, apperrors.BadRequest(fmt.Sprintf("field %q cannot be updated", f.Column), nil)
		}
		sets = append(sets, f.Column+" = ?")
		args = append(args, f.Value)
	}
	args = append(args, id)

	query := r.db.Rebind(fmt.Sprintf(`UPDATE patients SET %s WHERE id = ?`, strings.Join(sets, ", ")))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	changes, err = result.RowsAffected()
	if err != nil {
		return 0, apperrors.StoreFailure(err)
	}
	return changes, nil
}

func (r *patientRepository) DeleteByID(ctx context.Context, id int64) (changes int64, err error) {
	defer r.observe("delete", time.Now(), &err)

	query := r.db.Rebind(`DELETE FROM patients WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, classify(err)
	}
	changes, err = result.RowsAffected()
	if err != nil {
		return 0, apperrors.StoreFailure(err)
	}
	return changes, nil
}

func (r *patientRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *patientRepository) observe(operation string, start time.Time, err *error) {
	var opErr error
	if err != nil {
		opErr = *err
	}
	// a missing row is an answer, not a failed operation
	if apperrors.Is(opErr, apperrors.KindNotFound) {
		opErr = nil
	}
	r.metrics.ObserveDB(operation, start, opErr)
}
