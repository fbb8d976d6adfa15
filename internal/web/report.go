package web

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/store"
)

// buildStatusReport renders a markdown status report: reactor load and
// hosted actors, buffer pool accounting per reactor, and (if auditStore
// is set) pending dead-letter counts.
func buildStatusReport(ctx context.Context, sched *reactor.Scheduler,
	auditStore *store.Store, startedAt time.Time) string {

	var b strings.Builder

	fmt.Fprintf(&b, "# solidframe status\n\n")
	fmt.Fprintf(&b, "uptime: %s\n\n", time.Since(startedAt).Round(time.Second))

	fmt.Fprintf(&b, "## reactors\n\n")
	fmt.Fprintf(&b, "| reactor | load | actors |\n")
	fmt.Fprintf(&b, "|---|---|---|\n")
	for i := 0; i < sched.NumReactors(); i++ {
		r := sched.Reactor(i)
		fmt.Fprintf(&b, "| %d | %d | %d |\n", i, r.Load(), len(r.ListActors()))
	}

	fmt.Fprintf(&b, "\n## buffer pools\n\n")
	fmt.Fprintf(&b, "| reactor | class | capacity | outstanding | cached | allocated | freed |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|\n")
	for i := 0; i < sched.NumReactors(); i++ {
		for _, cs := range sched.Reactor(i).Pool().Stats() {
			fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d | %d |\n",
				i, cs.ClassIndex, cs.Capacity, cs.Outstanding, cs.Cached,
				cs.Allocated, cs.Freed,
			)
		}
	}

	if auditStore != nil {
		stats, err := auditStore.Queries().DeadLetterStatsQuery(ctx)
		fmt.Fprintf(&b, "\n## dead letters\n\n")
		if err != nil {
			fmt.Fprintf(&b, "error fetching dead letter stats: %v\n", err)
		} else {
			fmt.Fprintf(&b, "pending: %d, delivering: %d, delivered: %d, failed: %d\n",
				stats.Pending, stats.Delivering, stats.Delivered, stats.Failed,
			)
		}
	}

	return b.String()
}
