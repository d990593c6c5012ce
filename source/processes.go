package source

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/miosa/osa-scroller/style"
	"github.com/miosa/osa-scroller/ui/vlist"
)

// Process is one running process.
type Process struct {
	PID     int32
	Name    string
	Cmdline string
	CPU     float64
	RSS     uint64
	Sample  int
}

func (p Process) ID() string { return fmt.Sprintf("pid-%d", p.PID) }

// ContentVersion changes with every sample so refreshed rows re-render.
func (p Process) ContentVersion() int { return p.Sample }
func (p Process) Type() string        { return "process" }

// Render shows pid, name, CPU and resident memory. Expanded rows add the
// command line.
func (p Process) Render(width int, expanded bool) string {
	head := fmt.Sprintf("%s %-24s %6.1f%% %10s",
		style.RowIndex.Render(fmt.Sprintf("%7d", p.PID)), p.Name, p.CPU, humanize.IBytes(p.RSS))
	if !expanded || p.Cmdline == "" {
		return fit(head, width)
	}
	return fit(head, width) + "\n" + wrap(style.Detail.Render(p.Cmdline), max(1, width-8))
}

var samples atomic.Int64

// Processes lists running processes, largest resident set first.
// Processes that exit while being read are skipped.
func Processes(ctx context.Context) ([]vlist.Item, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	sample := int(samples.Add(1))

	entries := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		cmdline, _ := p.CmdlineWithContext(ctx)

		var rss uint64
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rss = mi.RSS
		}
		entries = append(entries, Process{
			PID:     p.Pid,
			Name:    name,
			Cmdline: cmdline,
			CPU:     cpuPct,
			RSS:     rss,
			Sample:  sample,
		})
	}

	slices.SortFunc(entries, func(a, b Process) int {
		switch {
		case a.RSS > b.RSS:
			return -1
		case a.RSS < b.RSS:
			return 1
		default:
			return int(a.PID - b.PID)
		}
	})

	items := make([]vlist.Item, len(entries))
	for i, e := range entries {
		items[i] = e
	}
	return items, nil
}
