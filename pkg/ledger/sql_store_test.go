package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conclave/pkg/authority"
)

func TestSQLStoreInit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_records").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewSQLStore(db)
	require.NoError(t, store.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{
		Seq:             1,
		DecisionID:      "dec-1",
		TaskID:          "task-1",
		Verdict:         authority.VerdictApproved,
		ProposalCount:   3,
		Reproducibility: 0.91,
		ContentHash:     "abcd1234abcd1234",
		PrevHash:        "genesis",
		RecordHash:      "sha256:deadbeef",
		Timestamp:       ts,
	}

	mock.ExpectExec("INSERT INTO audit_records").
		WithArgs(rec.Seq, rec.DecisionID, rec.TaskID, "approved", rec.ProposalCount,
			rec.Reproducibility, rec.ContentHash, rec.PrevHash, rec.RecordHash,
			rec.Signature, rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewSQLStore(db)
	require.NoError(t, store.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	columns := []string{
		"seq", "decision_id", "task_id", "verdict", "proposal_count",
		"reproducibility", "content_hash", "prev_hash", "record_hash",
		"signature", "ts",
	}
	rows := sqlmock.NewRows(columns).
		AddRow(1, "dec-1", "task-1", "approved", 3, 0.91,
			"hash1", "genesis", "sha256:aaa", "", ts).
		AddRow(2, "dec-2", "task-2", "denied", 2, 0.0,
			"hash2", "sha256:aaa", "sha256:bbb", "", ts)

	mock.ExpectQuery("SELECT (.+) FROM audit_records ORDER BY seq ASC").
		WillReturnRows(rows)

	store := NewSQLStore(db)
	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, authority.VerdictApproved, records[0].Verdict)
	assert.Equal(t, "sha256:aaa", records[0].RecordHash)
	assert.Equal(t, authority.VerdictDenied, records[1].Verdict)
	assert.Equal(t, "sha256:aaa", records[1].PrevHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	store := NewSQLStore(db)
	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
