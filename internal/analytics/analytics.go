// Package analytics aggregates stored activity into the report behind the
// stats command.
package analytics

import (
	"context"
	"time"

	"warden/internal/storage"

	"github.com/shirou/gopsutil/v3/process"
)

type Service struct {
	store   *storage.Store
	started time.Time
}

func New(store *storage.Store) *Service {
	return &Service{store: store, started: time.Now()}
}

type Report struct {
	AuditTotal   int
	ByLevel      map[string]int
	ByEvent      map[string]int
	Tickets      map[string]int
	OpenPolls    int
	OpenRemovals int
}

// Report summarizes audit activity since the given time plus current
// workload counters.
func (s *Service) Report(ctx context.Context, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ByLevel: make(map[string]int),
		ByEvent: make(map[string]int),
	}
	for _, log := range logs {
		report.AuditTotal++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
	}

	if report.Tickets, err = s.store.CountTicketsByStatus(ctx); err != nil {
		return Report{}, err
	}
	if report.OpenPolls, err = s.store.CountActivePolls(ctx); err != nil {
		return Report{}, err
	}
	if report.OpenRemovals, err = s.store.CountActiveRemovalPolls(ctx); err != nil {
		return Report{}, err
	}
	return report, nil
}

type Runtime struct {
	Uptime     time.Duration
	MemoryRSS  uint64
	CPUPercent float64
}

// Runtime reports process-level figures for the stats embed. Failures to
// read a figure leave it zero rather than failing the whole report.
func (s *Service) Runtime(ctx context.Context, pid int32) Runtime {
	rt := Runtime{Uptime: time.Since(s.started)}
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return rt
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		rt.MemoryRSS = mem.RSS
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		rt.CPUPercent = cpu
	}
	return rt
}
