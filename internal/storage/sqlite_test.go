//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "phasebot/pkg/logx"
)

func TestSQLiteJournalRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "journal.db"), BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	for i := 0; i < 3; i++ {
		r := Record{RunID: "run", Seq: int64(i), Logical: time.Duration(i) * time.Millisecond, Actor: 2, Kind: "add", Type: "cast", Name: "claw"}
		if err := st.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	recs, err := st.Records(ctx, "run")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 3 || recs[2].Logical != 2*time.Millisecond || recs[0].Name != "claw" || recs[0].At.IsZero() {
		t.Fatalf("Got records = %+v", recs)
	}
	runs, err := st.Runs(ctx)
	if err != nil || len(runs) != 1 || runs[0].Records != 3 {
		t.Fatalf("Got runs = %+v, err = %v", runs, err)
	}
}
