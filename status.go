package neobench

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/samber/lo"
)

const defaultStatusInterval = time.Second

// State is the lifecycle position of a combination in a batch.
type State uint8

const (
	Pending State = iota
	Running
	Complete
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return "pending"
	}
}

// CombinationStatus is a point-in-time view of one combination.
type CombinationStatus struct {
	Combination Combination
	State       State
	// Run is the 1-based benchmark run in progress, 0 while building.
	Run  int
	Runs int
	// Failed is set on Complete combinations that produced no result.
	Failed bool
}

// StatusBoard tracks per-combination progress for a batch.
//
// Writers are the executor's workers; readers take snapshots. Transitions
// only move forward (Pending -> Running -> Complete); out-of-order updates
// are ignored. A nil board ignores updates. Safe for concurrent use.
type StatusBoard struct {
	mu      sync.Mutex
	order   []Combination
	entries map[Combination]*CombinationStatus
}

// NewStatusBoard creates a board with every combination Pending.
func NewStatusBoard(combos []Combination) *StatusBoard {
	b := &StatusBoard{
		order:   make([]Combination, 0, len(combos)),
		entries: make(map[Combination]*CombinationStatus, len(combos)),
	}

	for _, c := range combos {
		if _, dup := b.entries[c]; dup {
			continue
		}

		b.order = append(b.order, c)
		b.entries[c] = &CombinationStatus{Combination: c, State: Pending}
	}

	return b
}

// Start marks c Running with the given number of benchmark runs.
func (b *StatusBoard) Start(c Combination, runs int) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[c]
	if !ok || e.State != Pending {
		return
	}

	e.State = Running
	e.Runs = runs
}

// SetRun records that benchmark run (1-based) of c is executing.
func (b *StatusBoard) SetRun(c Combination, run int) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[c]
	if !ok || e.State != Running || run < e.Run {
		return
	}

	e.Run = run
}

// Finish marks c Complete.
func (b *StatusBoard) Finish(c Combination, failed bool) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[c]
	if !ok || e.State == Complete {
		return
	}

	e.State = Complete
	e.Failed = failed
}

// SizeCounts are per-size state counts in a [StatusSnapshot].
type SizeCounts struct {
	Size     Size
	Total    int
	Pending  int
	Running  int
	Complete int
	Failed   int
}

// StatusSnapshot is an immutable copy of a [StatusBoard].
type StatusSnapshot struct {
	Total    int
	Pending  int
	Running  int
	Complete int
	Failed   int
	// Sizes are in first-seen combination order.
	Sizes []SizeCounts
	// InFlight lists Running combinations in board order.
	InFlight []CombinationStatus
}

// Done reports whether every combination is Complete.
func (s StatusSnapshot) Done() bool {
	return s.Complete == s.Total
}

// Snapshot returns the current state of the board.
func (b *StatusBoard) Snapshot() StatusSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := StatusSnapshot{Total: len(b.order)}
	sizeIdx := make(map[string]int)

	for _, c := range b.order {
		e := b.entries[c]

		idx, ok := sizeIdx[c.Size.Name]
		if !ok {
			idx = len(snap.Sizes)
			sizeIdx[c.Size.Name] = idx
			snap.Sizes = append(snap.Sizes, SizeCounts{Size: c.Size})
		}

		counts := &snap.Sizes[idx]
		counts.Total++

		switch e.State {
		case Pending:
			counts.Pending++
		case Running:
			counts.Running++
			snap.InFlight = append(snap.InFlight, *e)
		case Complete:
			counts.Complete++
			if e.Failed {
				counts.Failed++
			}
		}
	}

	snap.Pending = lo.SumBy(snap.Sizes, func(s SizeCounts) int { return s.Pending })
	snap.Running = lo.SumBy(snap.Sizes, func(s SizeCounts) int { return s.Running })
	snap.Complete = lo.SumBy(snap.Sizes, func(s SizeCounts) int { return s.Complete })
	snap.Failed = lo.SumBy(snap.Sizes, func(s SizeCounts) int { return s.Failed })

	return snap
}

// WatchStatus renders board to w every interval until all combinations are
// Complete or ctx is canceled. The last rendered snapshot is the final state.
//
// It only reads the board and never blocks writers beyond a snapshot copy.
// interval <= 0 uses 1s.
func WatchStatus(ctx context.Context, board *StatusBoard, interval time.Duration, w io.Writer) {
	if interval <= 0 {
		interval = defaultStatusInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			RenderStatus(w, board.Snapshot())

			return
		case <-ticker.C:
		}

		snap := board.Snapshot()
		RenderStatus(w, snap)

		if snap.Done() {
			return
		}
	}
}

// RenderStatus writes a human-readable status block.
func RenderStatus(w io.Writer, snap StatusSnapshot) {
	fmt.Fprintf(w, "status: %d/%d complete (%d failed), %d running, %d pending\n",
		snap.Complete, snap.Total, snap.Failed, snap.Running, snap.Pending)

	for _, s := range snap.Sizes {
		fmt.Fprintf(w, "  %-8s done=%d/%d running=%d pending=%d failed=%d\n",
			s.Size.Name, s.Complete, s.Total, s.Running, s.Pending, s.Failed)
	}

	for _, e := range snap.InFlight {
		if e.Run == 0 {
			fmt.Fprintf(w, "  > %s building\n", e.Combination.Key())

			continue
		}

		fmt.Fprintf(w, "  > %s run %d/%d\n", e.Combination.Key(), e.Run, e.Runs)
	}
}
