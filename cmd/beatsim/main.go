package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/beatsim/internal/config"
	"github.com/san-kum/beatsim/internal/experiment"
	"github.com/san-kum/beatsim/internal/export"
	"github.com/san-kum/beatsim/internal/optim"
	"github.com/san-kum/beatsim/internal/storage"
	"github.com/san-kum/beatsim/internal/telemetry"
	"github.com/san-kum/beatsim/internal/viz"
)

var (
	dataDir  string
	logLevel string
	// Overrides applied on top of a preset or config file.
	configFile string
	dt         float64
	end        float64
	theta      float64
	// run
	metricsAddr string
	noSave      bool
	// cell
	cellEnd   float64
	cellDt    float64
	initialV  float64
	stimAmp   float64
	stimStart float64
	stimDur   float64
	// convergence
	levels int
	// export-json
	outFile string
	// plot
	svgFile string
	// sweep
	sweepParams []string
	sweepMetric string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "beatsim",
		Short:         "cardiac electrophysiology by operator splitting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".beatsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation and store its trace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addOverrideFlags(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	cellCmd := &cobra.Command{
		Use:   "cell [model]",
		Short: "integrate a single cell without diffusion",
		Args:  cobra.ExactArgs(1),
		RunE:  runCell,
	}
	cellCmd.Flags().Float64Var(&cellEnd, "end", 100, "end time (ms)")
	cellCmd.Flags().Float64Var(&cellDt, "dt", 0.01, "timestep (ms)")
	cellCmd.Flags().Float64Var(&initialV, "v0", 0, "initial potential (default: the model's resting value)")
	cellCmd.Flags().Float64Var(&stimAmp, "stim", 0, "stimulus amplitude")
	cellCmd.Flags().Float64Var(&stimStart, "stim-start", 1, "stimulus start (ms)")
	cellCmd.Flags().Float64Var(&stimDur, "stim-duration", 2, "stimulus duration (ms)")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addOverrideFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the probe traces of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgFile, "svg", "", "also write the traces to this SVG file")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print the path of a run's trace CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and trace to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCELL\tPDE\tGRID\tTHETA\tEND")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%g\t%g\n",
					name, p.Cell, p.PDE.Kind, p.Grid.Nx, p.Grid.Ny, p.Splitting.Theta, p.Time.End)
			}
			return w.Flush()
		},
	}

	convergenceCmd := &cobra.Command{
		Use:   "convergence [preset]",
		Short: "estimate the time order of the splitting by halving dt",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConvergence,
	}
	addOverrideFlags(convergenceCmd)
	convergenceCmd.Flags().IntVar(&levels, "levels", 3, "number of refinements")

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "rank parameter combinations by a metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addOverrideFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "swept parameter as name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "peak_v", "metric to rank by, smallest first")

	rootCmd.AddCommand(runCmd, cellCmd, liveCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, presetsCmd, convergenceCmd, sweepCmd)
	return rootCmd
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "constant timestep (replaces any schedule)")
	cmd.Flags().Float64Var(&end, "end", config.DefaultDuration, "end time")
	cmd.Flags().Float64Var(&theta, "theta", config.DefaultTheta, "splitting theta")
}

// loadConfig resolves the configuration from --config, a preset name or the
// defaults, then applies explicitly set flags.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	case len(args) > 0:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", args[0], strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.DefaultConfig()
	}

	if cmd.Flags().Changed("dt") {
		cfg.Time.Dt = dt
		cfg.Time.Schedule = nil
	}
	if cmd.Flags().Changed("end") {
		cfg.Time.End = end
	}
	if cmd.Flags().Changed("theta") {
		cfg.Splitting.Theta = theta
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	log := slog.Default().With("run", cfg.Name)

	opts := experiment.Options{Logger: log}
	if metricsAddr != "" {
		col := telemetry.New(cfg.Name)
		opts.Telemetry = col
		stopServer := serveMetrics(metricsAddr, col, log)
		defer stopServer()
	}

	exp, err := experiment.Build(cfg, opts)
	if err != nil {
		return err
	}

	fmt.Printf("running %s: %s %s, %d dofs, theta=%g, t in [%g, %g]\n",
		cfg.Name, cfg.Cell, cfg.PDE.Kind, exp.Grid().NumDofs(), cfg.Splitting.Theta, cfg.Time.Start, cfg.Time.End)

	res, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%d steps in %v\n\n", res.Steps, res.Elapsed.Round(time.Millisecond))
	printMetrics(res.Metrics)

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg, res)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved: %s\n", runID)
	return nil
}

// serveMetrics exposes col on addr until the returned function is called.
func serveMetrics(addr string, col *telemetry.Collector, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", col.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range names {
		fmt.Fprintf(w, "%s\t%.6g\n", k, m[k])
	}
	w.Flush()
}

func runCell(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	cfg.Name = args[0]
	cfg.Cell = args[0]
	cfg.Time = config.TimeConfig{End: cellEnd, Dt: cellDt}
	if cmd.Flags().Changed("v0") {
		cfg.Initial = &initialV
	}
	if stimAmp != 0 {
		cfg.Stimulus = []config.StimulusConfig{{Amplitude: stimAmp, Start: stimStart, Duration: stimDur}}
	}

	s, err := experiment.BuildCell(cfg, slog.Default())
	if err != nil {
		return err
	}
	run, err := s.Solve(cmd.Context(), cfg.Interval(), cfg.Schedule())
	if err != nil {
		return err
	}

	v := []float64{s.SolutionFields().V()}
	for _, f := range run.Steps() {
		v = append(v, f.V())
	}
	if err := run.Err(); err != nil {
		return err
	}

	fmt.Println(asciigraph.Plot(v,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s: v over [%g, %g] ms", args[0], cfg.Time.Start, cfg.Time.End)),
	))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	// Logging to stderr would tear the alternate screen.
	exp, err := experiment.Build(cfg, experiment.Options{})
	if err != nil {
		return err
	}
	return viz.RunLive(cmd.Context(), exp)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCELL\tPDE\tTHETA\tODE\tSTEPS\tTIME")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%d\t%s\n",
			run.ID,
			run.Cell,
			run.PDE,
			run.Theta,
			run.ODEScheme,
			run.Steps,
			run.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(tr.Times) == 0 || len(tr.Columns) == 0 {
		return fmt.Errorf("run %s: no data to plot", runID)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("cell: %s, pde: %s, theta: %g\n", meta.Cell, meta.PDE, meta.Theta)
	fmt.Printf("samples: %d over [%g, %g]\n\n", len(tr.Times), tr.Times[0], tr.Times[len(tr.Times)-1])

	series := make([][]float64, len(tr.Columns))
	for k := range tr.Columns {
		series[k] = tr.Column(k)
	}
	fmt.Println(viz.PlotTraces(series, strings.Join(tr.Columns, ", "), 80, 15))
	fmt.Println()
	printMetrics(meta.Metrics)

	if svgFile == "" {
		return nil
	}
	svg, err := export.LinesSVG(tr.Times, series, tr.Columns, 800, 400)
	if err != nil {
		return err
	}
	if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("\nwrote %s\n", svgFile)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	path, err := storage.New(dataDir).TracePath(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if outFile == "" {
		return st.ExportJSON(os.Stdout, args[0])
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := st.ExportJSON(f, args[0]); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func runConvergence(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	fmt.Printf("convergence of %s, theta=%g, %d levels\n\n", cfg.Name, cfg.Splitting.Theta, levels)
	conv, err := experiment.RunConvergence(cmd.Context(), cfg, levels)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DT\tL2 ERROR\tRATE")
	for k, e := range conv.Errors {
		rate := "-"
		if k < len(conv.Rates) {
			rate = fmt.Sprintf("%.3f", conv.Rates[k])
		}
		fmt.Fprintf(w, "%g\t%.3e\t%s\n", conv.Dt[k], e, rate)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	axes := make([]optim.Axis, 0, len(sweepParams))
	for _, p := range sweepParams {
		ax, err := optim.ParseAxis(p)
		if err != nil {
			return err
		}
		axes = append(axes, ax)
	}
	g, err := optim.NewGridSearch(axes...)
	if err != nil {
		return err
	}

	points, err := g.Search(cmd.Context(), cfg, sweepMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(axes)+1)
	for _, ax := range axes {
		header = append(header, strings.ToUpper(ax.Name))
	}
	fmt.Fprintln(w, strings.Join(append(header, strings.ToUpper(sweepMetric)), "\t"))
	for _, p := range points {
		row := make([]string, 0, len(axes)+1)
		for _, ax := range axes {
			row = append(row, fmt.Sprintf("%g", p.Params[ax.Name]))
		}
		value := fmt.Sprintf("%.6g", p.Value)
		if p.Err != nil {
			value = "failed: " + p.Err.Error()
		}
		fmt.Fprintln(w, strings.Join(append(row, value), "\t"))
	}
	return w.Flush()
}
