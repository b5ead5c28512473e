package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/ports"
)

func sample(id string, at time.Time, decision domain.Decision) domain.DecisionRecord {
	return domain.DecisionRecord{
		ID:             id,
		Timestamp:      at,
		Command:        "rm",
		Args:           []string{"-rf", "build"},
		Decision:       decision,
		StoredLevel:    domain.RiskMedium,
		EffectiveLevel: domain.RiskHigh,
		Reason:         "escalated by recursive-or-force",
	}
}

func exerciseJournal(t *testing.T, j ports.DecisionJournal) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(ctx, sample("a", base, domain.DecisionAllow)))
	require.NoError(t, j.Append(ctx, sample("b", base.Add(time.Hour), domain.DecisionRequireHumanApproval)))
	violation := sample("c", base.Add(2*time.Hour), domain.DecisionReject)
	violation.IntegrityViolation = true
	require.NoError(t, j.Append(ctx, violation))

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.True(t, recent[0].IntegrityViolation)
	assert.Equal(t, domain.DecisionReject, recent[0].Decision)
	assert.Equal(t, domain.RiskHigh, recent[1].EffectiveLevel)
	assert.Equal(t, []string{"-rf", "build"}, recent[1].Args)

	removed, err := j.Prune(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteJournal(t *testing.T) {
	s := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	defer s.Close()
	require.NotNil(t, s.db)
	exerciseJournal(t, s)
}

func TestFileJournal(t *testing.T) {
	exerciseJournal(t, NewFileStore(filepath.Join(t.TempDir(), "history.jsonl")))
}

func TestFileJournalSkipsTornLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	f := NewFileStore(path)
	require.NoError(t, f.Append(context.Background(), sample("ok", time.Now(), domain.DecisionAllow)))
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = fh.WriteString(`{"id":"torn","timest`)
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	records, err := f.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ok", records[0].ID)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, Open(domain.HistorySettings{Enabled: false}))
	assert.IsType(t, &FileStore{}, Open(domain.HistorySettings{Enabled: true, Path: filepath.Join(dir, "h.jsonl")}))
	j := Open(domain.HistorySettings{Enabled: true, Path: filepath.Join(dir, "h.db")})
	require.IsType(t, &SQLiteStore{}, j)
	_ = j.(*SQLiteStore).Close()
}
