package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"curiesuite/domain/core"
	"curiesuite/domain/run"
	"curiesuite/internal/errors"
	"curiesuite/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository over sqlx
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a run repository. The schema must already exist
// (see internal/migration).
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRow struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	Title     string    `db:"title"`
	Params    string    `db:"params"`
	Summary   string    `db:"summary"`
	ElapsedMS int64     `db:"elapsed_ms"`
	CreatedAt time.Time `db:"created_at"`
}

type artifactRow struct {
	RunID     string `db:"run_id"`
	Name      string `db:"name"`
	MediaType string `db:"media_type"`
	Data      []byte `db:"data"`
}

func toRow(r *run.Run) (runRow, error) {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return runRow{}, err
	}
	params := string(r.Params)
	if params == "" {
		params = "{}"
	}
	return runRow{
		ID:        r.ID.String(),
		Kind:      string(r.Kind),
		Title:     r.Title,
		Params:    params,
		Summary:   string(summary),
		ElapsedMS: r.Elapsed.Milliseconds(),
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func (row runRow) toRun() (*run.Run, error) {
	r := &run.Run{
		ID:        core.RunID(row.ID),
		Kind:      run.Kind(row.Kind),
		Title:     row.Title,
		Params:    json.RawMessage(row.Params),
		Elapsed:   time.Duration(row.ElapsedMS) * time.Millisecond,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Summary), &r.Summary); err != nil {
		return nil, err
	}
	return r, nil
}

// Save inserts or replaces a run together with its artifacts
func (r *RunRepositoryImpl) Save(ctx context.Context, rn *run.Run) error {
	row, err := toRow(rn)
	if err != nil {
		return errors.Wrap(err, "encode run")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("begin save run", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO tool_runs (id, kind, title, params, summary, elapsed_ms, created_at)
		VALUES (:id, :kind, :title, :params, :summary, :elapsed_ms, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			params = excluded.params,
			summary = excluded.summary,
			elapsed_ms = excluded.elapsed_ms
	`, row)
	if err != nil {
		return errors.DatabaseError("save run", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tool_run_artifacts WHERE run_id = ?`), row.ID); err != nil {
		return errors.DatabaseError("replace run artifacts", err)
	}
	for _, a := range rn.Artifacts {
		if a.Data == nil {
			a.Data = []byte{}
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO tool_run_artifacts (run_id, name, media_type, data)
			VALUES (:run_id, :name, :media_type, :data)
		`, artifactRow{RunID: row.ID, Name: a.Name, MediaType: a.MediaType, Data: a.Data})
		if err != nil {
			return errors.DatabaseError("save run artifact "+a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("commit save run", err)
	}
	return nil
}

// Get loads a run with artifact contents
func (r *RunRepositoryImpl) Get(ctx context.Context, id core.RunID) (*run.Run, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, kind, title, params, summary, elapsed_ms, created_at
		FROM tool_runs
		WHERE id = ?
	`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithCode(errors.CodeNotFound, core.NewNotFoundError("run", id.String()))
	}
	if err != nil {
		return nil, errors.DatabaseError("get run", err)
	}

	rn, err := row.toRun()
	if err != nil {
		return nil, errors.Wrap(err, "decode run")
	}

	var artifacts []artifactRow
	err = r.db.SelectContext(ctx, &artifacts, r.db.Rebind(`
		SELECT run_id, name, media_type, data
		FROM tool_run_artifacts
		WHERE run_id = ?
		ORDER BY name
	`), id.String())
	if err != nil {
		return nil, errors.DatabaseError("get run artifacts", err)
	}
	for _, a := range artifacts {
		rn.Artifacts = append(rn.Artifacts, run.NewArtifact(a.Name, a.MediaType, a.Data))
	}
	return rn, nil
}

// ListRecent returns runs newest first with artifact names but no contents
func (r *RunRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*run.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, kind, title, params, summary, elapsed_ms, created_at
		FROM tool_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, errors.DatabaseError("list runs", err)
	}
	if len(rows) == 0 {
		return []*run.Run{}, nil
	}

	runs := make([]*run.Run, 0, len(rows))
	byID := make(map[string]*run.Run, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		rn, err := row.toRun()
		if err != nil {
			return nil, errors.Wrapf(err, "decode run %s", row.ID)
		}
		runs = append(runs, rn)
		byID[row.ID] = rn
		ids = append(ids, row.ID)
	}

	query, args, err := sqlx.In(`
		SELECT run_id, name, media_type
		FROM tool_run_artifacts
		WHERE run_id IN (?)
		ORDER BY run_id, name
	`, ids)
	if err != nil {
		return nil, errors.DatabaseError("build artifact query", err)
	}
	var artifacts []artifactRow
	if err := r.db.SelectContext(ctx, &artifacts, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("list run artifacts", err)
	}
	for _, a := range artifacts {
		if rn, ok := byID[a.RunID]; ok {
			rn.Artifacts = append(rn.Artifacts, run.Artifact{Name: a.Name, MediaType: a.MediaType})
		}
	}
	return runs, nil
}

// Delete removes a run and its artifacts
func (r *RunRepositoryImpl) Delete(ctx context.Context, id core.RunID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("begin delete run", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tool_run_artifacts WHERE run_id = ?`), id.String()); err != nil {
		return errors.DatabaseError("delete run artifacts", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tool_runs WHERE id = ?`), id.String())
	if err != nil {
		return errors.DatabaseError("delete run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.WithCode(errors.CodeNotFound, core.NewNotFoundError("run", id.String()))
	}
	return errors.Wrap(tx.Commit(), "commit delete run")
}
