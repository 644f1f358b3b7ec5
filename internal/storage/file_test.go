package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "phasebot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " OFF "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: Got (%v, %v), want (nil, nil)", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

func TestFileJournalRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "phasebot.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	for i, run := range []string{"a", "b", "a"} {
		r := Record{RunID: run, Seq: int64(i), At: now, Logical: time.Duration(i) * time.Second, Actor: 1, Kind: "timeline", Type: "cast", Name: "hopebreaker"}
		if err := st.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := st.Records(ctx, "a")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 2 || recs[1].Seq != 2 || recs[1].Logical != 2*time.Second {
		t.Fatalf("Got records = %+v", recs)
	}

	runs, err := st.Runs(ctx)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "a" || runs[0].Records != 2 || runs[1].Records != 1 {
		t.Fatalf("Got runs = %+v", runs)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := st.Append(ctx, Record{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Got err = %v, want ErrClosed", err)
	}

	// Reopen and append to the same journal.
	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if recs, _ := st.Records(ctx, "b"); len(recs) != 1 {
		t.Fatalf("Got %d records after reopen, want 1", len(recs))
	}
}

func TestFileJournalSkipsTornLines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "j")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	if err := st.Append(ctx, Record{RunID: "x", Type: "end"}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Records(ctx, "x"); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "j.journal.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("{\"run\":\"x\",\"se\n")
	_ = f.Close()

	recs, err := st.Records(ctx, "x")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Got %d records, want 1", len(recs))
	}
}
