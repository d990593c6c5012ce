package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/miosa/osa-scroller/app"
	"github.com/miosa/osa-scroller/config"
	"github.com/miosa/osa-scroller/observability"
)

const logFileMode = 0o644

func newRunCommand(version string) *cobra.Command {
	var (
		kind  string
		count int
		path  string
		theme string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scroll through a source interactively",
		Long: `Open the interactive list. The source is one of:
  synthetic   generated rows (--count)
  markdown    sections of a markdown file (--path)
  git         commits of a repository (--path)
  processes   running processes, refreshed live`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.Source.Kind = kind
			}
			if flags.Changed("count") {
				cfg.Source.Count = count
			}
			if flags.Changed("path") {
				cfg.Source.Path = path
			}
			if flags.Changed("theme") {
				cfg.UI.Theme = theme
			} else if cfg.UI.Theme == config.DefaultTheme && !lipgloss.HasDarkBackground(os.Stdin, os.Stdout) {
				cfg.UI.Theme = "light"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg, version)
		},
	}

	cmd.Flags().StringVarP(&kind, "source", "s", config.SourceSynthetic, "item source: synthetic, markdown, git or processes")
	cmd.Flags().IntVarP(&count, "count", "n", config.DefaultSourceCount, "number of synthetic rows")
	cmd.Flags().StringVarP(&path, "path", "p", ".", "markdown file or repository path")
	cmd.Flags().StringVar(&theme, "theme", config.DefaultTheme, "color theme")
	return cmd
}

func runTUI(ctx context.Context, cfg *config.Config, version string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logw, err := openLogFile(cfg.Log)
	if err != nil {
		return err
	}
	defer logw.Close()

	level, _ := cfg.Log.SlogLevel()
	prov, err := observability.Init(observability.Config{
		ServiceVersion: version,
		Mode:           observability.ModeTUI,
		LogLevel:       level,
		LogJSON:        cfg.Log.JSON,
	}, logw)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, prov.Shutdown(context.Background()))
	}()

	metrics, err := observability.NewScrollerMetrics(prov.Meter, "tui")
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observability.ServeMetrics(ctx, cfg.Metrics.Addr, prov.Metrics, prov.Logger); err != nil {
				prov.Logger.Error("metrics: stopped", "err", err)
			}
		}()
	}

	m, err := app.New(cfg,
		app.WithLogger(prov.Logger),
		app.WithRecorder(metrics),
		app.WithVersion(version),
	)
	if err != nil {
		return err
	}

	prov.Logger.Info("run: starting", "source", cfg.Source.Kind, "theme", cfg.UI.Theme)

	// AltScreen and mouse mode are set on the View, not as program options.
	p := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// openLogFile opens the log file for appending. A file larger than the
// configured maximum is moved to <file>.1 first. An empty path discards
// logs.
func openLogFile(cfg config.LogConfig) (io.WriteCloser, error) {
	if cfg.File == "" {
		return nopCloser{io.Discard}, nil
	}
	limit, err := cfg.MaxBytes()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	if fi, err := os.Stat(cfg.File); err == nil && limit > 0 && uint64(fi.Size()) > limit {
		if err := os.Rename(cfg.File, cfg.File+".1"); err != nil {
			return nil, fmt.Errorf("rotate log: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
