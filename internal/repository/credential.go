package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/reportlens/securelink-server-go/internal/database"
	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/model"
)

// CredentialRepository is the durable store of secure-link credentials.
// All mutations are conditional writes keyed on the current state so
// that concurrent purchases and redemption attempts can never both
// succeed on the same row.
type CredentialRepository interface {
	CreateBatch(ctx context.Context, params model.CreateBatchParams) ([]model.Credential, error)
	ClaimUnassigned(ctx context.Context, ownerPartnerID string, count int) ([]model.Credential, error)
	GetByID(ctx context.Context, id string) (*model.Credential, error)
	MarkRedeemed(ctx context.Context, id string, now time.Time) (*model.Credential, error)
	AttachAssignment(ctx context.Context, id string, assignment model.Assignment) error
	CountUnassigned(ctx context.Context, ownerPartnerID string) (int, error)
	CountByState(ctx context.Context, ownerPartnerID string) (*model.InventorySummary, error)
	MarkExpired(ctx context.Context) (int64, error)
	// WithTx returns a repository scoped to the given transaction
	WithTx(tx *sqlx.Tx) CredentialRepository
}

type credentialRepo struct {
	db database.DBTX
	// root is nil when the repository is transaction-scoped
	root *database.DB
}

func NewCredentialRepository(db *database.DB) CredentialRepository {
	return &credentialRepo{db: db.DB, root: db}
}

func (r *credentialRepo) WithTx(tx *sqlx.Tx) CredentialRepository {
	return &credentialRepo{db: tx}
}

// CreateBatch mints the whole batch in one multi-row insert, so a bulk
// purchase is a single round-trip regardless of quantity.
func (r *credentialRepo) CreateBatch(ctx context.Context, params model.CreateBatchParams) ([]model.Credential, error) {
	if params.Count < 1 {
		return nil, apperrors.InvalidInput("count", "must be at least 1")
	}

	rows := make([]string, 0, params.Count)
	args := make([]interface{}, 0, params.Count*2+3)
	args = append(args, params.OwnerPartnerID, params.BatchLabel, params.ExpiresAt)
	for i := 0; i < params.Count; i++ {
		rows = append(rows, fmt.Sprintf("($%d, $1, $%d, 'unassigned', $2, $3)", len(args)+1, len(args)+2))
		args = append(args, uuid.NewString(), uuid.NewString())
	}

	var creds []model.Credential
	err := r.db.SelectContext(ctx, &creds, fmt.Sprintf(`
		INSERT INTO credentials (id, owner_partner_id, chat_session_id, state, batch_label, expires_at)
		VALUES %s
		RETURNING *
	`, strings.Join(rows, ", ")), args...)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

// ClaimUnassigned atomically moves up to count unassigned credentials of
// one pool to assigned and returns them. When fewer than count rows are
// available it claims nothing and fails with INSUFFICIENT_INVENTORY.
// Row locks with SKIP LOCKED keep two concurrent claims from ever
// selecting the same credential.
func (r *credentialRepo) ClaimUnassigned(ctx context.Context, ownerPartnerID string, count int) ([]model.Credential, error) {
	if r.root != nil {
		var claimed []model.Credential
		err := r.root.WithTx(ctx, func(tx *sqlx.Tx) error {
			var txErr error
			claimed, txErr = r.WithTx(tx).ClaimUnassigned(ctx, ownerPartnerID, count)
			return txErr
		})
		if err != nil {
			return nil, err
		}
		return claimed, nil
	}

	var claimed []model.Credential
	err := r.db.SelectContext(ctx, &claimed, `
		UPDATE credentials SET state = 'assigned'
		WHERE id IN (
			SELECT id FROM credentials
			WHERE owner_partner_id = $1 AND state = 'unassigned' AND expires_at > NOW()
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, ownerPartnerID, count)
	if err != nil {
		return nil, err
	}
	if len(claimed) < count {
		// The enclosing transaction rolls the partial update back, so
		// the shortfall case claims zero rows.
		return nil, apperrors.InsufficientInventory(len(claimed), count)
	}
	return claimed, nil
}

func (r *credentialRepo) GetByID(ctx context.Context, id string) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM credentials WHERE id = $1
	`, id)
	return HandleNotFound(&cred, err)
}

// MarkRedeemed performs the one-way redeem transition as a single
// conditional update. Of two concurrent redemption attempts on the same
// id exactly one matches the predicate; the loser observes the stored
// state and gets ALREADY_USED or EXPIRED.
func (r *credentialRepo) MarkRedeemed(ctx context.Context, id string, now time.Time) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.GetContext(ctx, &cred, `
		UPDATE credentials SET
			state = 'redeemed',
			redeemed_at = $2,
			chat_session_id = COALESCE(chat_session_id, $3)
		WHERE id = $1
			AND state IN ('unassigned', 'assigned')
			AND expires_at > $2
		RETURNING *
	`, id, now, uuid.NewString())
	if err == nil {
		return &cred, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// The conditional update matched nothing; read the row to report why.
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case existing == nil:
		return nil, apperrors.NotFound("Link")
	case existing.State == model.StateRedeemed:
		return nil, apperrors.AlreadyUsed()
	default:
		return nil, apperrors.Expired()
	}
}

// AttachAssignment sets the immutable assignment payload. A second call
// on the same credential fails and leaves the first payload intact.
func (r *credentialRepo) AttachAssignment(ctx context.Context, id string, assignment model.Assignment) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET
			assigned_email = $2,
			assigned_plan = $3,
			assigned_quantity = $4,
			assigned_at = $5
		WHERE id = $1 AND assigned_at IS NULL
	`, id, assignment.CustomerEmail, assignment.PlanLabel, assignment.Quantity, assignment.PurchasedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperrors.NotFound("Credential")
		}
		return apperrors.AlreadyAssigned()
	}
	return nil
}

func (r *credentialRepo) CountUnassigned(ctx context.Context, ownerPartnerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM credentials
		WHERE owner_partner_id = $1 AND state = 'unassigned' AND expires_at > NOW()
	`, ownerPartnerID)
	return count, err
}

// CountByState is the derived read-model for reporting. Expired is a
// read-time classification, so rows past their TTL count as expired even
// before the background job persists the state.
func (r *credentialRepo) CountByState(ctx context.Context, ownerPartnerID string) (*model.InventorySummary, error) {
	var summary model.InventorySummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT
			COUNT(*) FILTER (WHERE state = 'unassigned' AND expires_at > NOW()) AS available,
			COUNT(*) FILTER (WHERE state = 'assigned' AND expires_at > NOW()) AS assigned,
			COUNT(*) FILTER (WHERE state = 'redeemed') AS redeemed,
			COUNT(*) FILTER (WHERE state = 'expired'
				OR (state IN ('unassigned', 'assigned') AND expires_at <= NOW())) AS expired
		FROM credentials
		WHERE owner_partner_id = $1
	`, ownerPartnerID)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// MarkExpired persists the derived expired classification for rows past
// their TTL. Redeemed rows are never touched; credentials are retained
// for audit and never deleted.
func (r *credentialRepo) MarkExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET state = 'expired'
		WHERE state IN ('unassigned', 'assigned') AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
