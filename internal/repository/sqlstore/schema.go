package sqlstore

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		gender TEXT NOT NULL,
		contact TEXT,
		weight TEXT,
		height TEXT,
		bp TEXT,
		symptoms TEXT,
		history TEXT,
		file_data TEXT,
		file_name TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_created_at ON patients (created_at)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		processed_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_events_status ON outbox_events (status, created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id BIGSERIAL PRIMARY KEY,
		pid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		gender TEXT NOT NULL,
		contact TEXT,
		weight TEXT,
		height TEXT,
		bp TEXT,
		symptoms TEXT,
		history TEXT,
		file_data TEXT,
		file_name TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_created_at ON patients (created_at)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_events_status ON outbox_events (status, created_at)`,
}

func schemaFor(driver string) []string {
	if driver == DriverPostgres {
		return postgresSchema
	}
	return sqliteSchema
}
