package scheduler

import (
	"testing"
	"time"

	"github.com/spec-kit/guild-warden/pkg/clock"
)

func TestScheduleFiresAndRemovesEntry(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	table := NewTable(clk)

	fired := 0
	table.Schedule("guild-1/user-1", time.Minute, func() { fired++ })

	if !table.Pending("guild-1/user-1") {
		t.Fatalf("expected task pending before advance")
	}

	clk.Advance(time.Minute)
	if fired != 1 {
		t.Fatalf("expected task fired once, got %d", fired)
	}
	if table.Pending("guild-1/user-1") {
		t.Fatalf("fired task must remove its table entry")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	table := NewTable(clk)

	fired := false
	table.Schedule("k", time.Minute, func() { fired = true })

	if !table.Cancel("k") {
		t.Fatalf("expected Cancel to report a pending task")
	}
	if table.Cancel("k") {
		t.Fatalf("expected second Cancel to report nothing pending")
	}

	clk.Advance(time.Hour)
	if fired {
		t.Fatalf("cancelled task must not fire")
	}
}

func TestScheduleReplacesPendingTask(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	table := NewTable(clk)

	var got string
	table.Schedule("k", time.Minute, func() { got = "old" })
	table.Schedule("k", 2*time.Minute, func() { got = "new" })

	clk.Advance(time.Minute)
	if got != "" {
		t.Fatalf("replaced task must not fire, got %q", got)
	}

	clk.Advance(time.Minute)
	if got != "new" {
		t.Fatalf("expected replacement task to fire, got %q", got)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d entries", table.Len())
	}
}
