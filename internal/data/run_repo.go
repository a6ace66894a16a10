package data

import (
	"database/sql"

	"dbseed/internal/core"
)

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Create(l *core.RunLog) error {
	res, err := r.db.Exec(`INSERT INTO runs (started_at, backend, server, database_name, status, step, sql_state, error_message, rows_seeded, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.StartedAt, l.Backend, l.Server, l.Database, l.Status, l.Step, l.State, l.ErrorMessage, l.RowsSeeded, l.DurationMs)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	l.ID = id
	return nil
}

func (r *RunRepo) GetRecent(limit int) ([]core.RunLog, error) {
	rows, err := r.db.Query(`SELECT id, started_at, backend, server, database_name, status, step, sql_state, error_message, rows_seeded, duration_ms FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []core.RunLog
	for rows.Next() {
		var l core.RunLog
		var step, state, errMsg sql.NullString
		if err := rows.Scan(&l.ID, &l.StartedAt, &l.Backend, &l.Server, &l.Database, &l.Status, &step, &state, &errMsg, &l.RowsSeeded, &l.DurationMs); err != nil {
			return nil, err
		}
		l.Step = step.String
		l.State = state.String
		l.ErrorMessage = errMsg.String

		// SQLite hands timestamps back in UTC
		l.StartedAt = l.StartedAt.Local()

		runs = append(runs, l)
	}
	return runs, rows.Err()
}
