package neobench_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/calvinalkan/neobench"
	"github.com/google/go-cmp/cmp"
)

func boardCombos() []neobench.Combination {
	return []neobench.Combination{
		neobench.Baseline(micro),
		{Level: neobench.O2, Size: micro},
		neobench.Baseline(small),
	}
}

func Test_StatusBoard_Starts_All_Pending(t *testing.T) {
	t.Parallel()

	board := neobench.NewStatusBoard(boardCombos())
	snap := board.Snapshot()

	if snap.Total != 3 || snap.Pending != 3 || snap.Running != 0 || snap.Complete != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if len(snap.Sizes) != 2 || snap.Sizes[0].Size != micro || snap.Sizes[0].Total != 2 {
		t.Fatalf("unexpected size counts: %+v", snap.Sizes)
	}

	if snap.Done() {
		t.Fatal("fresh board reported done")
	}
}

func Test_StatusBoard_Ignores_Transition_When_Moving_Backwards(t *testing.T) {
	t.Parallel()

	combos := boardCombos()
	board := neobench.NewStatusBoard(combos)
	c := combos[1]

	// SetRun before Start is ignored.
	board.SetRun(c, 1)

	board.Start(c, 3)
	board.SetRun(c, 2)
	board.SetRun(c, 1)

	snap := board.Snapshot()
	want := []neobench.CombinationStatus{{Combination: c, State: neobench.Running, Run: 2, Runs: 3}}

	if diff := cmp.Diff(want, snap.InFlight); diff != "" {
		t.Fatalf("in-flight mismatch (-want +got):\n%s", diff)
	}

	board.Finish(c, true)
	board.Start(c, 3)
	board.Finish(c, false)

	snap = board.Snapshot()
	if snap.Complete != 1 || snap.Failed != 1 || snap.Running != 0 {
		t.Fatalf("completed combination regressed: %+v", snap)
	}
}

func Test_StatusBoard_Ignores_Updates_When_Nil_Or_Unknown(t *testing.T) {
	t.Parallel()

	var nilBoard *neobench.StatusBoard

	nilBoard.Start(neobench.Baseline(micro), 1)
	nilBoard.SetRun(neobench.Baseline(micro), 1)
	nilBoard.Finish(neobench.Baseline(micro), false)

	board := neobench.NewStatusBoard(boardCombos())
	board.Start(neobench.Combination{Level: neobench.O3, Size: small}, 1)

	if board.Snapshot().Running != 0 {
		t.Fatal("unknown combination changed the board")
	}
}

func Test_StatusBoard_Counts_Are_Consistent_When_Updated_Concurrently(t *testing.T) {
	t.Parallel()

	var combos []neobench.Combination

	for _, size := range []neobench.Size{micro, small} {
		for x := neobench.ExtraFlags(0); x <= neobench.ExtraAll; x++ {
			combos = append(combos, neobench.Combination{Level: neobench.O2, Extra: x, Size: size})
		}
	}

	board := neobench.NewStatusBoard(combos)

	var wg sync.WaitGroup

	for _, c := range combos {
		wg.Go(func() {
			board.Start(c, 2)
			board.SetRun(c, 1)
			_ = board.Snapshot()
			board.SetRun(c, 2)
			board.Finish(c, false)
		})
	}

	wg.Wait()

	snap := board.Snapshot()
	if !snap.Done() || snap.Complete != len(combos) || snap.Failed != 0 {
		t.Fatalf("unexpected final snapshot: %+v", snap)
	}
}

func Test_WatchStatus_Returns_When_All_Complete(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		combos := boardCombos()
		board := neobench.NewStatusBoard(combos)

		var out bytes.Buffer

		done := make(chan struct{})

		go func() {
			neobench.WatchStatus(t.Context(), board, time.Second, &out)
			close(done)
		}()

		board.Start(combos[0], 1)
		time.Sleep(time.Second)
		synctest.Wait()

		for _, c := range combos {
			board.Start(c, 1)
			board.Finish(c, false)
		}

		time.Sleep(time.Second)
		synctest.Wait()

		select {
		case <-done:
		default:
			t.Fatal("WatchStatus still running after all combinations completed")
		}

		text := out.String()
		if !strings.Contains(text, "1 running") {
			t.Fatalf("missing in-progress render:\n%s", text)
		}

		if !strings.Contains(text, "status: 3/3 complete") {
			t.Fatalf("missing final render:\n%s", text)
		}
	})
}

func Test_WatchStatus_Returns_When_Context_Canceled(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		board := neobench.NewStatusBoard(boardCombos())
		ctx, cancel := context.WithCancel(t.Context())

		var out bytes.Buffer

		done := make(chan struct{})

		go func() {
			neobench.WatchStatus(ctx, board, 0, &out)
			close(done)
		}()

		cancel()
		synctest.Wait()

		select {
		case <-done:
		default:
			t.Fatal("WatchStatus still running after cancel")
		}

		if !strings.Contains(out.String(), "0/3 complete") {
			t.Fatalf("expected a final render, got:\n%s", out.String())
		}
	})
}

func Test_RenderStatus_Shows_Run_Index_When_In_Flight(t *testing.T) {
	t.Parallel()

	combos := boardCombos()
	board := neobench.NewStatusBoard(combos)

	board.Start(combos[0], 3)
	board.SetRun(combos[0], 2)
	board.Start(combos[1], 3)

	var out bytes.Buffer

	neobench.RenderStatus(&out, board.Snapshot())

	text := out.String()
	for _, want := range []string{"micro/O0/none/x0 run 2/3", "micro/O2/none/x0 building", "micro"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}
