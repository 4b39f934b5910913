// ./internal/state/snapshot_store.go
package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/openamm/weightedpool/internal/types"
)

// SavePoolSnapshot saves one join/exit cycle snapshot to the database.
func SavePoolSnapshot(snapshot types.PoolSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	balances := make([]string, len(snapshot.Balances))
	for i, b := range snapshot.Balances {
		balances[i] = b.String()
	}

	query := `
		INSERT INTO pool_cycle_snapshots (
			pool_id, operation, snapshot_timestamp,
			pre_invariant, post_invariant, protocol_fee_bpt,
			total_supply, ath_rate_product, balances
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.PoolID, snapshot.Operation, snapshot.Timestamp,
		snapshot.PreInvariant.String(), snapshot.PostInvariant.String(), snapshot.ProtocolFeeBpt.String(),
		snapshot.TotalSupply.String(), snapshot.ATHRateProduct.String(),
		pq.Array(balances),
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save pool snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("pool_id", snapshot.PoolID).
		Str("operation", snapshot.Operation).
		Msg("Pool cycle snapshot saved to database")

	return snapshotID, nil
}

// GetRecentPoolSnapshots loads the latest snapshots for a pool, newest first.
func GetRecentPoolSnapshots(poolID string, limit int) ([]types.PoolSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT pool_id, operation, snapshot_timestamp,
			pre_invariant, post_invariant, protocol_fee_bpt,
			total_supply, ath_rate_product, balances
		FROM pool_cycle_snapshots
		WHERE pool_id = $1
		ORDER BY snapshot_timestamp DESC
		LIMIT $2;
	`
	rows, err := DB.Query(query, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.PoolSnapshot
	for rows.Next() {
		var (
			s        types.PoolSnapshot
			pre      string
			post     string
			fee      string
			supply   string
			ath      string
			balances pq.StringArray
		)
		if err := rows.Scan(&s.PoolID, &s.Operation, &s.Timestamp, &pre, &post, &fee, &supply, &ath, &balances); err != nil {
			return nil, fmt.Errorf("failed to scan pool snapshot: %w", err)
		}
		if s.PreInvariant, err = parseStoredInt(pre); err != nil {
			return nil, err
		}
		if s.PostInvariant, err = parseStoredInt(post); err != nil {
			return nil, err
		}
		if s.ProtocolFeeBpt, err = parseStoredInt(fee); err != nil {
			return nil, err
		}
		if s.TotalSupply, err = parseStoredInt(supply); err != nil {
			return nil, err
		}
		if s.ATHRateProduct, err = parseStoredInt(ath); err != nil {
			return nil, err
		}
		s.Balances = make([]sdkmath.Int, len(balances))
		for i, b := range balances {
			if s.Balances[i], err = parseStoredInt(b); err != nil {
				return nil, err
			}
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func parseStoredInt(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("corrupt stored integer: %q", s)
	}
	return v, nil
}
