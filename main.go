package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/stevemurr/student-manager/config"
	"github.com/stevemurr/student-manager/handler"
	"github.com/stevemurr/student-manager/store"
	"github.com/stevemurr/student-manager/student"
	"github.com/stevemurr/student-manager/watch"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "students",
	Short:         "Student Management API and tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print student statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *student.Manager) error {
			return printJSON(cmd.OutOrStdout(), m.Statistics())
		})
	},
}

var (
	listGrade  string
	listName   string
	listMinAge int
	listMaxAge int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print students as JSON, optionally filtered",
	Long: `Prints the students matching every given filter.

--max-age 0 means no upper bound.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *student.Manager) error {
			return printJSON(cmd.OutOrStdout(), listStudents(m, cmd))
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print statistics every time the JSON document changes",
	RunE:  runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "students.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	listCmd.Flags().StringVar(&listGrade, "grade", "", "exact grade")
	listCmd.Flags().StringVar(&listName, "name", "", "substring of the name")
	listCmd.Flags().IntVar(&listMinAge, "min-age", 0, "minimum age")
	listCmd.Flags().IntVar(&listMaxAge, "max-age", 0, "maximum age (0 = no bound)")

	rootCmd.AddCommand(serveCmd, statsCmd, listCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// withManager opens the configured backend for the duration of fn.
func withManager(fn func(m *student.Manager) error) error {
	b, err := store.New(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to create store (backend=%s): %w", cfg.Store.Backend, err)
	}
	if c, ok := b.(io.Closer); ok {
		defer c.Close()
	}
	return fn(student.NewManager(b, student.Options{
		Logger:              logger.Named("students"),
		CaseSensitiveSearch: cfg.Search.CaseSensitive,
	}))
}

func listStudents(m *student.Manager, cmd *cobra.Command) []student.Record {
	var sets [][]student.Record
	if cmd.Flags().Changed("grade") {
		sets = append(sets, m.FilterByGrade(listGrade))
	}
	if cmd.Flags().Changed("name") {
		sets = append(sets, m.SearchByName(listName))
	}
	if cmd.Flags().Changed("min-age") || cmd.Flags().Changed("max-age") {
		sets = append(sets, m.FilterByAge(listMinAge, listMaxAge))
	}
	if len(sets) == 0 {
		return m.All()
	}
	return intersect(sets)
}

// intersect keeps the records of the first set whose id is in every set.
func intersect(sets [][]student.Record) []student.Record {
	counts := map[int]int{}
	for _, set := range sets {
		for _, r := range set {
			counts[r.ID]++
		}
	}
	out := []student.Record{}
	for _, r := range sets[0] {
		if counts[r.ID] == len(sets) {
			out = append(out, r)
		}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withManager(func(m *student.Manager) error {
		ctx, stop := signalContext()
		defer stop()

		// Nothing may be running yet if the watcher cannot be built.
		var w *watch.Watcher
		if cfg.Store.Watch {
			var err error
			w, err = watch.New(cfg.Store.Path, 250*time.Millisecond, func() {
				logger.Info("students document changed on disk",
					zap.Int("total_students", m.Statistics().TotalStudents))
			}, logger.Named("watch"))
			if err != nil {
				return err
			}
		}

		h := handler.New(m, logger.Named("http"))
		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler.CORS(h, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("student server starting",
				zap.String("addr", srv.Addr),
				zap.String("store", cfg.Store.Backend),
				zap.String("path", cfg.Store.Path),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
			defer cancel()
			logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		})
		if w != nil {
			g.Go(func() error { return w.Run(ctx) })
		}
		return g.Wait()
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	if cfg.Store.Backend != "json" && cfg.Store.Backend != "" {
		return fmt.Errorf("watch requires the json backend, got %q", cfg.Store.Backend)
	}
	return withManager(func(m *student.Manager) error {
		ctx, stop := signalContext()
		defer stop()

		out := cmd.OutOrStdout()
		if err := printJSON(out, m.Statistics()); err != nil {
			return err
		}
		w, err := watch.New(cfg.Store.Path, 250*time.Millisecond, func() {
			if err := printJSON(out, m.Statistics()); err != nil {
				logger.Error("cannot print statistics", zap.Error(err))
			}
		}, logger.Named("watch"))
		if err != nil {
			return err
		}
		return w.Run(ctx)
	})
}
