package outcome

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/declaranet/declara-cli/internal/engine"
)

func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func sampleOutcome(status engine.RunStatus) engine.RunOutcome {
	started := time.Date(2025, 1, 17, 10, 0, 0, 0, time.UTC)
	return engine.RunOutcome{
		RunID:      "8a6f2c1e-0000-0000-0000-000000000000",
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Minute),
		Deltas:     map[string]float64{"isr-a-pagar": 0.6},
	}
}

func TestRecordWithoutPoolOnlyLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recorder := NewRecorder(nil, zap.New(core))

	err := recorder.Record(context.Background(), 7, 2, "2025-01", sampleOutcome(engine.StatusSent))
	require.NoError(t, err)

	entries := logs.FilterMessage("Declaration run recorded.").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestRecordBlockedLogsAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recorder := NewRecorder(nil, zap.New(core))

	require.NoError(t, recorder.Record(context.Background(), 7, 2, "2025-01",
		sampleOutcome(engine.StatusMismatchBlocked)))

	entries := logs.FilterMessage("Declaration run recorded.").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestRecordPersistsRow(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	out := sampleOutcome(engine.StatusSent)
	mockPool.ExpectExec(flexibleSQLMatcher(insertSQL)).
		WithArgs(out.RunID, 7, 2, "2025-01", "sent",
			out.StartedAt.UTC(), out.FinishedAt.UTC(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	recorder := NewRecorder(mockPool, zap.NewNop())
	require.NoError(t, recorder.Record(context.Background(), 7, 2, "2025-01", out))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecordInsertFailureSurfaces(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	execErr := errors.New("relation does not exist")
	mockPool.ExpectExec(flexibleSQLMatcher(insertSQL)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(execErr)

	recorder := NewRecorder(mockPool, zap.NewNop())
	err = recorder.Record(context.Background(), 7, 2, "2025-01", sampleOutcome(engine.StatusFailed))
	require.ErrorIs(t, err, execErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
