package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/miosa/osa-scroller/bridge"
	"github.com/miosa/osa-scroller/config"
	"github.com/miosa/osa-scroller/observability"
	"github.com/miosa/osa-scroller/pool"
	"github.com/miosa/osa-scroller/scroller"
	"github.com/miosa/osa-scroller/source"
)

// Output formats of the window command.
const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatCSV      = "csv"
)

// ErrUnknownOutput is returned for unsupported --output values.
var ErrUnknownOutput = errors.New("unknown output format")

type record = map[string]any

// windowOptions are the flags of the window command.
type windowOptions struct {
	count     int
	viewport  float64
	positions []float64
	variable  bool
	output    string
	all       bool
}

func newWindowCommand(version string) *cobra.Command {
	var o windowOptions

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the windows a scroller computes for given positions",
		Long: `Build a scroller over generated records and scroll it to each
position in turn. For every pass the bound slots are printed along with the
window range and the slots bound or released.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runWindow(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, o, version)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.count, "count", "n", 1000, "number of records")
	f.Float64Var(&o.viewport, "viewport", 20, "viewport size")
	f.Float64SliceVar(&o.positions, "scroll", []float64{0}, "scroll positions, in order")
	f.BoolVar(&o.variable, "variable", false, "give records sizes 1 to 3 instead of a fixed item size")
	f.StringVarP(&o.output, "output", "o", formatTable, "output format: table, markdown or csv")
	f.BoolVar(&o.all, "all", false, "include unused slots")
	return cmd
}

func runWindow(ctx context.Context, out, errw io.Writer, cfg *config.Config, o windowOptions, version string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch o.output {
	case formatTable, formatMarkdown, formatCSV:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, o.output)
	}

	level, _ := cfg.Log.SlogLevel()
	prov, err := observability.Init(observability.Config{
		ServiceVersion: version,
		Mode:           observability.ModeCLI,
		LogLevel:       level,
		LogJSON:        cfg.Log.JSON,
	}, errw)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, prov.Shutdown(context.Background()))
	}()

	metrics, err := observability.NewScrollerMetrics(prov.Meter, "window")
	if err != nil {
		return err
	}

	opts := cfg.Options()
	opts.Logger = prov.Logger
	opts.Recorder = metrics
	size := func(int) float64 { return 1 }
	if o.variable {
		opts.ItemSize = 0
		opts.GridItems = 0
		size = func(i int) float64 { return float64(i%3 + 1) }
	} else if opts.ItemSize <= 0 {
		opts.ItemSize = 1
	}

	sc, err := scroller.NewRecycle(opts, scroller.Accessors[record]{})
	if err != nil {
		return err
	}
	if _, err := sc.SetItems(source.Records(o.count, size)); err != nil {
		return err
	}
	if _, err := sc.SetViewport(o.viewport); err != nil {
		return err
	}
	if _, err := sc.EndPrerender(); err != nil {
		return err
	}

	for _, pos := range o.positions {
		if err := windowAt(ctx, prov.Tracer, out, sc, pos, o); err != nil {
			return err
		}
	}
	return writePoolStats(out, sc.Stats(), o.output)
}

// windowAt scrolls to pos and prints the resulting pass.
func windowAt(ctx context.Context, tr trace.Tracer, out io.Writer, sc *scroller.Recycle[record], pos float64, o windowOptions) error {
	_, span := tr.Start(ctx, "scroller.window",
		trace.WithAttributes(attribute.Float64("scroll.position", pos)))
	defer span.End()

	p, err := sc.ScrollToPosition(pos)
	if err == nil && sc.Options().PageMode {
		// The records fill the page, so the page range follows the scroll.
		p, err = sc.SetPageBounds(bridge.PageRange(-sc.Scroll(), sc.ContentSize(), sc.Viewport()))
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.Int("window.start", p.Start),
		attribute.Int("window.end", p.End),
		attribute.Int("slots.bound", p.Bound),
		attribute.Int("slots.released", p.Released),
	)

	head := color.New(color.FgCyan, color.Bold)
	head.Fprintf(out, "scroll %g → items %d–%d (visible %d–%d)", sc.Scroll(), p.Start, p.End, p.VisibleStart, p.VisibleEnd)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s  %s  %s\n",
		color.GreenString("bound %d", p.Bound),
		color.YellowString("released %d", p.Released),
		continuity(p.Continuous),
	)

	views := slices.Clone(p.Views)
	slices.SortFunc(views, func(a, b *pool.Slot[record, any]) int {
		if a.Used != b.Used {
			if a.Used {
				return -1
			}
			return 1
		}
		return a.Index - b.Index
	})

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"slot", "index", "key", "type", "offset", "used"})
	for _, v := range views {
		if !v.Used && !o.all {
			continue
		}
		tbl.AppendRow(table.Row{v.ID, v.Index, v.Key, v.Type, v.Offset, v.Used})
	}
	tbl.AppendFooter(table.Row{"", "", "", "", "total", fmt.Sprintf("%d slots", len(views))})
	fmt.Fprintln(out, render(tbl, o.output))
	return nil
}

func continuity(c bool) string {
	if c {
		return color.New(color.Faint).Sprint("continuous")
	}
	return color.RedString("jump")
}

func writePoolStats(out io.Writer, stats map[string]pool.TypeStats, format string) error {
	types := make([]string, 0, len(stats))
	for t := range stats {
		types = append(types, t)
	}
	slices.Sort(types)

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("slot pool")
	tbl.AppendHeader(table.Row{"type", "allocated", "used", "peak"})
	for _, t := range types {
		s := stats[t]
		name := t
		if name == "" {
			name = "(default)"
		}
		tbl.AppendRow(table.Row{name, s.Allocated, s.Used, s.Peak})
	}
	_, err := fmt.Fprintln(out, render(tbl, format))
	return err
}

func render(tbl table.Writer, format string) string {
	switch format {
	case formatMarkdown:
		return tbl.RenderMarkdown()
	case formatCSV:
		return tbl.RenderCSV()
	default:
		return tbl.Render()
	}
}
