package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Mindburn-Labs/conclave/pkg/authority"
)

// SQLStore persists audit records via database/sql. It works with both
// postgres (lib/pq) and sqlite (modernc.org/sqlite): the schema and the $N
// placeholders are accepted by both drivers.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
	seq BIGINT PRIMARY KEY,
	decision_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	verdict TEXT NOT NULL,
	proposal_count INTEGER NOT NULL,
	reproducibility DOUBLE PRECISION NOT NULL,
	content_hash TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	record_hash TEXT NOT NULL,
	signature TEXT NOT NULL DEFAULT '',
	ts TIMESTAMP NOT NULL
);
`

// Init creates the audit table if it does not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqlSchema); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Append(ctx context.Context, rec Record) error {
	const query = `
		INSERT INTO audit_records
			(seq, decision_id, task_id, verdict, proposal_count, reproducibility,
			 content_hash, prev_hash, record_hash, signature, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Seq, rec.DecisionID, rec.TaskID, string(rec.Verdict), rec.ProposalCount,
		rec.Reproducibility, rec.ContentHash, rec.PrevHash, rec.RecordHash,
		rec.Signature, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit record %d: %w", rec.Seq, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Record, error) {
	const query = `
		SELECT seq, decision_id, task_id, verdict, proposal_count, reproducibility,
		       content_hash, prev_hash, record_hash, signature, ts
		FROM audit_records ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var verdict string
		if err := rows.Scan(
			&rec.Seq, &rec.DecisionID, &rec.TaskID, &verdict, &rec.ProposalCount,
			&rec.Reproducibility, &rec.ContentHash, &rec.PrevHash, &rec.RecordHash,
			&rec.Signature, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Verdict = authority.Verdict(verdict)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return result, nil
}

func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}
