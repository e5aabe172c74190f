package exportlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"edubag/lib/testutil"
	"edubag/lib/timezone"
	"edubag/services/exportlog/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestService(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/exportlog",
		DbSchema: db.Schema,
	})
	defer cleanup()
	service := NewService(setup.DB)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	history, err := service.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 0)

	start := timezone.Now().Add(-time.Hour)
	okId, err := service.Record(ctx, RecordParams{
		Platform:  "brightspace",
		Operation: "gradebook",
		Course:    "12345",
		Files:     []string{"out/Calculus_I_GradesExport.csv"},
		StartedAt: start,
	})
	require.NoError(t, err)
	require.NotEmpty(t, okId)

	failedId, err := service.Record(ctx, RecordParams{
		Platform:  "albert",
		Operation: "rosters",
		Course:    "Calculus I",
		Err:       fmt.Errorf("session expired"),
	})
	require.NoError(t, err)

	history, err = service.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	require.Equal(t, failedId, history[0].Id)
	require.Equal(t, StatusFailed, history[0].Status)
	require.Equal(t, "session expired", history[0].Detail)
	require.Empty(t, history[0].Files)

	require.Equal(t, okId, history[1].Id)
	require.Equal(t, "brightspace", history[1].Platform)
	require.Equal(t, "gradebook", history[1].Operation)
	require.Equal(t, StatusOk, history[1].Status)
	require.Equal(t, []string{"out/Calculus_I_GradesExport.csv"}, history[1].Files)
	require.Equal(t, start.Unix(), history[1].StartedAt.Unix())
}

func TestHistoryLimit(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/exportlog",
		DbSchema: db.Schema,
	})
	defer cleanup()
	service := NewService(setup.DB)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	base := timezone.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := service.Record(ctx, RecordParams{
			Platform:  "gradescope",
			Operation: "roster",
			Course:    fmt.Sprint(1000 + i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	history, err := service.History(ctx, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "1004", history[0].Course)
	require.Equal(t, "1002", history[2].Course)
}
