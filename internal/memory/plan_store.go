package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/planning"
	"github.com/josephgoksu/deepagent/internal/util"
)

var (
	_ planning.Repository = (*SQLiteStore)(nil)
	_ util.PlanIDFinder   = (*SQLiteStore)(nil)
)

const planColumns = `id, thread_id, title, status, created_at, updated_at, completed_at, version`

// insertStepTx inserts one step row under id.
func insertStepTx(ctx context.Context, tx txExecutor, planID, id string, st *planning.Step) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO steps (id, plan_id, step_number, description, completed, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, planID, st.StepNumber, st.Description, st.Completed, nullTimeString(st.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert step %d: %w", st.StepNumber, err)
	}
	return nil
}

// === Plan CRUD ===

// CreatePlan stores a plan and its steps atomically. The active-plan check runs
// inside the same transaction, and the partial unique index backs it up.
// Ids are written back to p only once the transaction commits.
func (s *SQLiteStore) CreatePlan(ctx context.Context, p *planning.Plan) (*planning.Plan, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	planID := p.ID
	if planID == "" {
		planID = util.NewID(util.PlanPrefix)
	}
	if p.Status == "" {
		p.Status = planning.PlanStatusActive
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	stepIDs := make([]string, len(p.Steps))
	for i, st := range p.Steps {
		stepIDs[i] = st.ID
		if stepIDs[i] == "" {
			stepIDs[i] = util.NewID(util.StepPrefix)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewRepository("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if p.Status == planning.PlanStatusActive {
		active, err := hasActivePlanTx(ctx, tx, p.ThreadID)
		if err != nil {
			return nil, apperr.NewRepository("check active plan", err)
		}
		if active {
			return nil, planning.ActiveConflict(p.ThreadID)
		}
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	`, planID, p.ThreadID, p.Title, p.Status, formatTime(p.CreatedAt), formatTime(p.UpdatedAt), nullTimeString(p.CompletedAt)); err != nil {
		if isUniqueViolation(err) {
			return nil, planning.ActiveConflict(p.ThreadID)
		}
		return nil, apperr.NewRepository("insert plan", err)
	}

	for i, st := range p.Steps {
		if err := insertStepTx(ctx, tx, planID, stepIDs[i], st); err != nil {
			return nil, apperr.NewRepository("insert steps", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, planning.ActiveConflict(p.ThreadID)
		}
		return nil, apperr.NewRepository("commit plan", err)
	}

	p.ID = planID
	p.Version = 1
	for i, st := range p.Steps {
		st.ID = stepIDs[i]
	}
	return p, nil
}

// GetPlanByID retrieves a plan with its steps, or nil when absent.
func (s *SQLiteStore) GetPlanByID(ctx context.Context, id string) (*planning.Plan, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	p, err := scanPlanRow(s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewRepository("query plan", err)
	}
	if err := s.loadSteps(ctx, s.db, p); err != nil {
		return nil, apperr.NewRepository("load steps", err)
	}
	return restore(p)
}

// GetActivePlanByThread returns the newest active plan for the thread.
// More than one active plan is a consistency fault and is logged.
func (s *SQLiteStore) GetActivePlanByThread(ctx context.Context, threadID string) (*planning.Plan, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	plans, err := s.queryPlans(ctx, `
		SELECT `+planColumns+` FROM plans
		WHERE thread_id = ? AND status = ?
		ORDER BY created_at DESC, rowid DESC
	`, threadID, planning.PlanStatusActive)
	if err != nil {
		return nil, apperr.NewRepository("query active plan", err)
	}
	if len(plans) == 0 {
		return nil, nil
	}
	if len(plans) > 1 {
		ids := make([]string, len(plans))
		for i, p := range plans {
			ids[i] = p.ID
		}
		s.logger.Warn("multiple active plans for thread",
			"thread_id", threadID,
			"count", len(plans),
			"plan_ids", ids,
			"returned", plans[0].ID)
	}

	p := plans[0]
	if err := s.loadSteps(ctx, s.db, p); err != nil {
		return nil, apperr.NewRepository("load steps", err)
	}
	return restore(p)
}

// GetPlansByThread lists the thread's plans newest first, optionally by status.
func (s *SQLiteStore) GetPlansByThread(ctx context.Context, threadID string, status *planning.PlanStatus) ([]*planning.Plan, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	query := `SELECT ` + planColumns + ` FROM plans WHERE thread_id = ?`
	args := []any{threadID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	plans, err := s.queryPlans(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewRepository("query plans", err)
	}
	out := make([]*planning.Plan, 0, len(plans))
	for _, p := range plans {
		if err := s.loadSteps(ctx, s.db, p); err != nil {
			return nil, apperr.NewRepository("load steps", err)
		}
		restored, err := restore(p)
		if err != nil {
			return nil, err
		}
		out = append(out, restored)
	}
	return out, nil
}

// UpdatePlan writes the plan row and reconciles its steps in one transaction:
// rows are updated by id, new steps inserted, surplus rows deleted.
//
// The write only applies when p.Version matches the stored version. A plan
// changed by someone else since it was loaded yields a *apperr.ConflictError
// and nothing is written.
func (s *SQLiteStore) UpdatePlan(ctx context.Context, p *planning.Plan) (*planning.Plan, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewRepository("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE plans SET title = ?, status = ?, updated_at = ?, completed_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, p.Title, p.Status, formatTime(p.UpdatedAt), nullTimeString(p.CompletedAt), p.ID, p.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, planning.ActiveConflict(p.ThreadID)
		}
		return nil, apperr.NewRepository("update plan", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE id = ?`, p.ID).Scan(&exists); err != nil {
			return nil, apperr.NewRepository("check plan version", err)
		}
		if exists == 0 {
			return nil, apperr.NewNotFound("plan", p.ID)
		}
		return nil, planning.StaleConflict(p.ID)
	}

	existing, err := stepIDsTx(ctx, tx, p.ID)
	if err != nil {
		return nil, apperr.NewRepository("list step ids", err)
	}

	keep := make(map[string]bool, len(p.Steps))
	for _, st := range p.Steps {
		if st.ID != "" && existing[st.ID] {
			keep[st.ID] = true
		}
	}
	for id := range existing {
		if !keep[id] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE id = ?`, id); err != nil {
				return nil, apperr.NewRepository("delete step", err)
			}
		}
	}

	stepIDs := make([]string, len(p.Steps))
	for i, st := range p.Steps {
		if keep[st.ID] {
			stepIDs[i] = st.ID
			if _, err := tx.ExecContext(ctx, `
				UPDATE steps SET step_number = ?, description = ?, completed = ?, completed_at = ?
				WHERE id = ?
			`, st.StepNumber, st.Description, st.Completed, nullTimeString(st.CompletedAt), st.ID); err != nil {
				return nil, apperr.NewRepository("update step", err)
			}
			continue
		}
		stepIDs[i] = util.NewID(util.StepPrefix)
		if err := insertStepTx(ctx, tx, p.ID, stepIDs[i], st); err != nil {
			return nil, apperr.NewRepository("insert step", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.NewRepository("commit plan", err)
	}

	p.Version++
	for i, st := range p.Steps {
		st.ID = stepIDs[i]
	}
	return p, nil
}

// UpdateStep writes one step's completion state.
func (s *SQLiteStore) UpdateStep(ctx context.Context, planID string, st *planning.Step) (*planning.Step, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := st.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewRepository("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE steps SET description = ?, completed = ?, completed_at = ?
		WHERE plan_id = ? AND step_number = ?
	`, st.Description, st.Completed, nullTimeString(st.CompletedAt), planID, st.StepNumber)
	if err != nil {
		return nil, apperr.NewRepository("update step", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NewNotFound("step", fmt.Sprintf("%s#%d", planID, st.StepNumber))
	}
	// Any loaded copy of the plan is now stale.
	if _, err := tx.ExecContext(ctx, `UPDATE plans SET version = version + 1 WHERE id = ?`, planID); err != nil {
		return nil, apperr.NewRepository("bump plan version", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.NewRepository("commit step", err)
	}
	return st, nil
}

// DeletePlan removes a plan; steps cascade. It returns false when nothing was deleted.
func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return false, apperr.NewRepository("delete plan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.NewRepository("delete plan", err)
	}
	return n > 0, nil
}

// PlanExists reports whether a plan with id is stored.
func (s *SQLiteStore) PlanExists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE id = ?`, id).Scan(&n); err != nil {
		return false, apperr.NewRepository("plan exists", err)
	}
	return n > 0, nil
}

// HasActivePlan reports whether the thread has an active plan.
func (s *SQLiteStore) HasActivePlan(ctx context.Context, threadID string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	active, err := hasActivePlanTx(ctx, s.db, threadID)
	if err != nil {
		return false, apperr.NewRepository("has active plan", err)
	}
	return active, nil
}

// ThreadsWithMultipleActivePlans returns thread ids holding more than one active plan.
func (s *SQLiteStore) ThreadsWithMultipleActivePlans(ctx context.Context) (map[string]int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, COUNT(*) FROM plans
		WHERE status = ?
		GROUP BY thread_id
		HAVING COUNT(*) > 1
	`, planning.PlanStatusActive)
	if err != nil {
		return nil, apperr.NewRepository("scan active plans", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var threadID string
		var n int
		if err := rows.Scan(&threadID, &n); err != nil {
			return nil, apperr.NewRepository("scan active plans", err)
		}
		out[threadID] = n
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, apperr.NewRepository("scan active plans", err)
	}
	return out, nil
}

// EnforcesUniqueActivePlan reports whether the partial unique index was created.
func (s *SQLiteStore) EnforcesUniqueActivePlan() bool {
	return s.uniqueActive
}

func hasActivePlanTx(ctx context.Context, q txExecutor, threadID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plans WHERE thread_id = ? AND status = ?`,
		threadID, planning.PlanStatusActive).Scan(&n)
	return n > 0, err
}

func stepIDsTx(ctx context.Context, q txExecutor, planID string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM steps WHERE plan_id = ?`, planID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, checkRowsErr(rows)
}

// queryPlans reads plan rows without steps. Rows are closed before returning
// so callers can issue further queries on the single connection.
func (s *SQLiteStore) queryPlans(ctx context.Context, query string, args ...any) ([]*planning.Plan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var plans []*planning.Plan
	for rows.Next() {
		p, err := scanPlanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *SQLiteStore) loadSteps(ctx context.Context, q txExecutor, p *planning.Plan) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, step_number, description, completed, completed_at
		FROM steps WHERE plan_id = ?
		ORDER BY step_number ASC
	`, p.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	p.Steps = []*planning.Step{}
	for rows.Next() {
		var st planning.Step
		var completedAt sql.NullString
		if err := rows.Scan(&st.ID, &st.StepNumber, &st.Description, &st.Completed, &completedAt); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		st.CompletedAt = parseNullTime(completedAt)
		p.Steps = append(p.Steps, &st)
	}
	return checkRowsErr(rows)
}

func scanPlanRow(row rowScanner) (*planning.Plan, error) {
	var p planning.Plan
	var createdAt, updatedAt string
	var completedAt sql.NullString
	if err := row.Scan(&p.ID, &p.ThreadID, &p.Title, &p.Status, &createdAt, &updatedAt, &completedAt, &p.Version); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.CompletedAt = parseNullTime(completedAt)
	return &p, nil
}

// restore validates a loaded plan. A stored plan that breaks the aggregate
// rules is reported as a storage fault rather than handed to callers.
func restore(p *planning.Plan) (*planning.Plan, error) {
	restored, err := planning.RestorePlan(p)
	if err != nil {
		return nil, apperr.NewRepository("load plan "+p.ID, err)
	}
	return restored, nil
}

// FindPlanIDsByPrefix returns up to 20 plan ids starting with prefix, sorted.
func (s *SQLiteStore) FindPlanIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM plans WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT 20`, likePrefix(prefix))
	if err != nil {
		return nil, apperr.NewRepository("find plan ids", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.NewRepository("find plan ids", err)
		}
		ids = append(ids, id)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, apperr.NewRepository("find plan ids", err)
	}
	return ids, nil
}
