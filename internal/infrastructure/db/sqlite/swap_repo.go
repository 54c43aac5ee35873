package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ark-network/swapd/internal/core/domain"
)

const (
	upsertSwap = `
INSERT INTO swap (
    id, role, starting_timestamp, communication_status,
    alpha_ledger_state, beta_ledger_state, final, version, data
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    communication_status = EXCLUDED.communication_status,
    alpha_ledger_state = EXCLUDED.alpha_ledger_state,
    beta_ledger_state = EXCLUDED.beta_ledger_state,
    final = EXCLUDED.final,
    version = EXCLUDED.version,
    data = EXCLUDED.data;
`

	selectSwap = `SELECT data FROM swap WHERE id = ?;`

	selectActiveSwaps = `
SELECT data FROM swap
WHERE final = FALSE AND communication_status IN (?, ?)
ORDER BY starting_timestamp;
`

	selectSwapIds = `SELECT id FROM swap ORDER BY starting_timestamp;`
)

type swapRepository struct {
	db *sql.DB
}

func NewSwapRepository(config ...interface{}) (domain.SwapRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open swap repository: invalid config, expected db at 0")
	}

	return &swapRepository{db}, nil
}

func (r *swapRepository) Close() {
	_ = r.db.Close()
}

func (r *swapRepository) AddOrUpdateSwap(ctx context.Context, swap domain.Swap) error {
	data, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("failed to serialize swap: %w", err)
	}

	stmt, err := r.db.PrepareContext(ctx, upsertSwap)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(
		ctx,
		swap.Id,
		swap.Role.String(),
		swap.StartingTimestamp,
		int64(swap.Communication.Status),
		int64(swap.AlphaLedgerState.State),
		int64(swap.BetaLedgerState.State),
		swap.IsFinal(),
		int64(swap.Version),
		string(data),
	); err != nil {
		return fmt.Errorf("failed to upsert swap: %w", err)
	}
	return nil
}

func (r *swapRepository) GetSwap(ctx context.Context, id string) (*domain.Swap, error) {
	var data string
	if err := r.db.QueryRowContext(ctx, selectSwap, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSwapNotFound, id)
		}
		return nil, err
	}
	return decodeSwap(data)
}

func (r *swapRepository) GetActiveSwaps(ctx context.Context) ([]domain.Swap, error) {
	rows, err := r.db.QueryContext(
		ctx, selectActiveSwaps, int64(domain.Proposed), int64(domain.Accepted),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	swaps := make([]domain.Swap, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		swap, err := decodeSwap(data)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, *swap)
	}
	return swaps, rows.Err()
}

func (r *swapRepository) GetSwapIds(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, selectSwapIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func decodeSwap(data string) (*domain.Swap, error) {
	swap := &domain.Swap{}
	if err := json.Unmarshal([]byte(data), swap); err != nil {
		return nil, fmt.Errorf("failed to deserialize swap: %w", err)
	}
	return swap, nil
}
