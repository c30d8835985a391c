package crdb

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
)

const approvalColumns = `id, org_id, user_id, approver_id, travel_data, policy_evaluation, status, reason,
	created_at, updated_at, resolved_at`

func (r *Repository) CreateApproval(ctx context.Context, req domain.ApprovalRequest, events ...domain.Event) error {
	travel, err := json.Marshal(req.TravelData)
	if err != nil {
		return errors.Wrap(err, "marshal travel data")
	}
	verdict, err := json.Marshal(req.Verdict)
	if err != nil {
		return errors.Wrap(err, "marshal policy evaluation")
	}
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO approval_requests (id, org_id, user_id, approver_id, travel_data, policy_evaluation, status,
				reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		`, req.ID, req.OrgID, req.UserID, req.ApproverID, travel, verdict, string(req.Status), req.Reason, req.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert approval request")
		}
		return r.insertEvents(ctx, tx, events)
	})
}

// ResolveApproval moves a PENDING request to its resolved status. It fails with
// ErrConflict when the stored request is no longer pending.
func (r *Repository) ResolveApproval(ctx context.Context, req domain.ApprovalRequest, events ...domain.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE approval_requests SET status = $2, approver_id = $3, reason = $4, updated_at = $5, resolved_at = $5
			WHERE id = $1 AND status = 'PENDING'
		`, req.ID, string(req.Status), req.ApproverID, req.Reason, req.ResolvedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return errors.Wrapf(domain.ErrConflict, "approval request %s is not pending", req.ID)
		}
		return r.insertEvents(ctx, tx, events)
	})
}

func (r *Repository) GetApproval(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id)
	req, err := scanApproval(row)
	if err != nil {
		return nil, notFound(err, "approval request "+id.String())
	}
	return req, nil
}

func (r *Repository) ListApprovals(ctx context.Context, f domain.ApprovalFilter) ([]domain.ApprovalRequest, error) {
	args := []interface{}{f.OrgID}
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE org_id = $1`
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += ` AND user_id = $` + strconv.Itoa(len(args))
	}
	if f.ApproverID != nil {
		args = append(args, *f.ApproverID)
		query += ` AND approver_id = $` + strconv.Itoa(len(args))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []domain.ApprovalRequest{}
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanApproval(row pgx.Row) (*domain.ApprovalRequest, error) {
	var (
		req             domain.ApprovalRequest
		status          string
		travel, verdict []byte
	)
	err := row.Scan(&req.ID, &req.OrgID, &req.UserID, &req.ApproverID, &travel, &verdict, &status, &req.Reason,
		&req.CreatedAt, &req.UpdatedAt, &req.ResolvedAt)
	if err != nil {
		return nil, err
	}
	req.Status = domain.ApprovalStatus(status)
	if err := json.Unmarshal(travel, &req.TravelData); err != nil {
		return nil, errors.Wrap(err, "travel data")
	}
	if err := json.Unmarshal(verdict, &req.Verdict); err != nil {
		return nil, errors.Wrap(err, "policy evaluation")
	}
	return &req, nil
}
