package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CreatedAtLayout is the ISO-8601 form stored in created_at. It sorts
// lexically in time order, which list-all relies on.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// Patient is one intake record
type Patient struct {
	ID        int64   `db:"id" json:"id"`
	PID       string  `db:"pid" json:"pid"`
	Name      string  `db:"name" json:"name"`
	Age       int     `db:"age" json:"age"`
	Gender    string  `db:"gender" json:"gender"`
	Contact   *string `db:"contact" json:"contact"`
	Weight    *string `db:"weight" json:"weight"`
	Height    *string `db:"height" json:"height"`
	BP        *string `db:"bp" json:"bp"`
	Symptoms  *string `db:"symptoms" json:"symptoms"`
	History   *string `db:"history" json:"history"`
	FileData  *string `db:"file_data" json:"fileData"`
	FileName  *string `db:"file_name" json:"fileName"`
	CreatedAt string  `db:"created_at" json:"createdAt"`
}

// CreatePatientRequest is the POST /patients body
type CreatePatientRequest struct {
	PID      string  `json:"pid" binding:"required,max=64,pid"`
	Name     string  `json:"name" binding:"required,max=200"`
	Age      *int    `json:"age" binding:"required,min=0,max=150"`
	Gender   string  `json:"gender" binding:"required,max=32"`
	Contact  *string `json:"contact"`
	Weight   *string `json:"weight"`
	Height   *string `json:"height"`
	BP       *string `json:"bp"`
	Symptoms *string `json:"symptoms"`
	History  *string `json:"history"`
	FileData *string `json:"fileData" binding:"omitempty,datauri"`
	FileName *string `json:"fileName" binding:"omitempty,max=255"`
	// CreatedAt accepts any RFC 3339 timestamp and is stored normalized to
	// UTC with millisecond precision (CreatedAtLayout), so
	// "2026-10-19T10:00:00+02:00" reads back as "2026-10-19T08:00:00.000Z".
	// Absent, the server's clock is used.
	CreatedAt *string `json:"createdAt"`
}

// UpdatePatientRequest is the PUT /patients/:id body. Absent fields are left
// untouched. An explicit null clears an optional field and is rejected on
// name, age and gender. id, pid and createdAt are never updatable.
type UpdatePatientRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=200"`
	Age      *int    `json:"age" binding:"omitempty,min=0,max=150"`
	Gender   *string `json:"gender" binding:"omitempty,min=1,max=32"`
	Contact  *string `json:"contact"`
	Weight   *string `json:"weight"`
	Height   *string `json:"height"`
	BP       *string `json:"bp"`
	Symptoms *string `json:"symptoms"`
	History  *string `json:"history"`
	FileData *string `json:"fileData" binding:"omitempty,datauri"`
	FileName *string `json:"fileName" binding:"omitempty,max=255"`

	nulls map[string]bool
}

// requiredFields cannot be cleared once a patient exists
var requiredFields = []string{"name", "age", "gender"}

// UnmarshalJSON decodes the body and records which keys were sent as null
func (r *UpdatePatientRequest) UnmarshalJSON(data []byte) error {
	type plain UpdatePatientRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range requiredFields {
		if isNull(raw[key]) {
			return fmt.Errorf("%s must not be null", key)
		}
	}

	*r = UpdatePatientRequest(p)
	r.nulls = make(map[string]bool)
	for key, value := range raw {
		if isNull(value) {
			r.nulls[key] = true
		}
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return v != nil && bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// PatientField is one column assignment of an update
type PatientField struct {
	Column string
	Value  interface{}
}

// Fields lists the columns named by the request, in a fixed order. A field
// sent as null yields a nil Value, which the store writes as NULL.
func (r *UpdatePatientRequest) Fields() []PatientField {
	var fields []PatientField
	add := func(column string, value *string, key string) {
		switch {
		case value != nil:
			fields = append(fields, PatientField{Column: column, Value: *value})
		case r.nulls[key]:
			fields = append(fields, PatientField{Column: column, Value: nil})
		}
	}

	add("name", r.Name, "name")
	if r.Age != nil {
		fields = append(fields, PatientField{Column: "age", Value: *r.Age})
	}
	add("gender", r.Gender, "gender")
	add("contact", r.Contact, "contact")
	add("weight", r.Weight, "weight")
	add("height", r.Height, "height")
	add("bp", r.BP, "bp")
	add("symptoms", r.Symptoms, "symptoms")
	add("history", r.History, "history")
	add("file_data", r.FileData, "fileData")
	add("file_name", r.FileName, "fileName")
	return fields
}

// CreatePatientResponse is returned with 201 on create
type CreatePatientResponse struct {
	ID  int64  `json:"id"`
	PID string `json:"pid"`
}

// ChangesResponse reports rows affected by update or delete
type ChangesResponse struct {
	Changes int64 `json:"changes"`
}

// FormatCreatedAt renders t the way created_at is stored
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}
