package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/objones25/pkemu/internal/config"
	"github.com/objones25/pkemu/internal/emulator"
	"github.com/objones25/pkemu/internal/regression"
	"github.com/objones25/pkemu/internal/server"
	"github.com/objones25/pkemu/internal/storage/cache"
	"github.com/objones25/pkemu/internal/storage/monitor"
)

const usage = `Usage: pkemu <command> [flags]

Commands:
  inspect        load the model artifacts and print a summary
  predict        print P(k) for one cosmology
  serve          run the HTTP prediction API
  verify-cache   compare cached spectra with fresh predictions

Run "pkemu <command> --help" for the flags of a command.
`

func main() {
	if _, err := config.LoadEnvFiles(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	config.RegisterFlags(fs)

	var run func(ctx context.Context, cfg *config.Config) error
	switch cmd {
	case "inspect":
		run = runInspect
	case "predict":
		params := fs.String("params", "", "comma-separated h,Omega_c,Omega_b,Asx1e9,ns,mnu (default cosmology if empty)")
		units := fs.String("units", "h3", "output units: h3 for (Mpc/h)^3, mpc3 for Mpc^3")
		run = func(ctx context.Context, cfg *config.Config) error {
			return runPredict(ctx, cfg, *params, *units)
		}
	case "serve":
		run = runServe
	case "verify-cache":
		repair := fs.Bool("repair", false, "overwrite inconsistent entries")
		run = func(ctx context.Context, cfg *config.Config) error {
			return runVerify(ctx, cfg, *repair)
		}
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if emulator.IsArtifactLoad(err) {
			log.Fatal().Err(err).Str("manifest", cfg.Artifacts.Manifest).Msg("Failed to load model artifacts")
		}
		log.Fatal().Err(err).Str("command", cmd).Msg("Command failed")
	}
}

func runInspect(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	store := a.store
	k := store.KGrid()
	basis := store.Basis()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Manifest:\t%s\n", cfg.Artifacts.Manifest)
	fmt.Fprintf(w, "Fingerprint:\t%s\n", store.Fingerprint())
	fmt.Fprintf(w, "Principal components:\t%d\n", store.NumComponents())
	fmt.Fprintf(w, "Whitened:\t%v\n", basis.Whiten())
	fmt.Fprintf(w, "k points:\t%d\n", store.OutputDim())
	fmt.Fprintf(w, "k range:\t[%g, %g] h/Mpc\n", k[0], k[len(k)-1])
	if ev := basis.ExplainedVariance(); len(ev) > 0 {
		fmt.Fprintf(w, "Explained variance:\t%v\n", ev)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Parameter\tMin\tMax\tDefault")
	defaults := emulator.DefaultParameters()
	for i, iv := range store.Bounds() {
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", emulator.ParameterNames[i], iv.Min, iv.Max, defaults[i])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Component\tRegressor")
	for i, r := range store.Ensemble() {
		fmt.Fprintf(w, "%d\t%s\n", i, regression.Kind(r))
	}
	return w.Flush()
}

func parseParams(s string) (emulator.ParameterVector, error) {
	if strings.TrimSpace(s) == "" {
		return emulator.DefaultParameters(), nil
	}
	fields := strings.Split(s, ",")
	params := make(emulator.ParameterVector, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %d: %v", emulator.ErrInvalidInput, i, err)
		}
		params[i] = v
	}
	return params, nil
}

func runPredict(ctx context.Context, cfg *config.Config, rawParams, rawUnits string) error {
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}
	units, err := emulator.ParseUnits(rawUnits)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	pk, err := a.emu.Predict(ctx, params)
	if err != nil {
		return err
	}
	pk = pk.In(units, a.emu.Resolve(params))

	unitLabel := "(Mpc/h)^3"
	if units == emulator.UnitsMpc3 {
		unitLabel = "Mpc^3"
	}
	fmt.Printf("# %s\n", params)
	fmt.Printf("# k [h/Mpc]\tP(k) [%s]\n", unitLabel)
	for i, k := range a.emu.KGrid() {
		fmt.Printf("%.8e\t%.8e\n", k, pk[i])
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().
		Str("manifest", cfg.Artifacts.Manifest).
		Str("fingerprint", a.store.Fingerprint()).
		Int("components", a.store.NumComponents()).
		Int("k_points", a.store.OutputDim()).
		Str("bounds_policy", cfg.Emulator.BoundsPolicy).
		Bool("cache", a.cache != nil).
		Msg("Emulator ready")

	if cfg.Warmer.Enabled && a.cache != nil {
		warmer := monitor.NewCacheWarmer(a.emu, a.cache, monitor.WarmerConfig{
			Steps:    cfg.Warmer.Steps,
			Workers:  cfg.Warmer.Workers,
			Interval: cfg.Warmer.Interval,
		})
		go warmer.StartWarming(ctx)
	}

	checks := map[string]server.HealthChecker{}
	if a.cache != nil {
		checks["cache"] = a.cache
	}
	return server.New(a.emu, checks).Run(ctx, server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}

func runVerify(ctx context.Context, cfg *config.Config, repair bool) error {
	if !cfg.Cache.Enabled || cfg.Cache.RedisAddr == "" {
		return fmt.Errorf("verify-cache needs a Redis cache (--redis-addr)")
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	reference, err := emulator.New(a.store, emulator.Config{Workers: cfg.Emulator.Workers})
	if err != nil {
		return err
	}

	verifier := monitor.NewConsistencyVerifier(a.redis, cache.NewKeyGenerator(a.store.Fingerprint()), reference,
		monitor.VerifierConfig{
			Steps:      cfg.Warmer.Steps,
			Workers:    cfg.Warmer.Workers,
			AutoRepair: repair,
			Timeout:    10 * time.Minute,
		})
	result, err := verifier.VerifyConsistency(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Int("checked", result.Checked).
		Int("missing", result.Missing).
		Int("mismatches", result.Mismatches).
		Int("repaired", result.Repaired).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Cache verification completed")
	if result.Mismatches > result.Repaired {
		return fmt.Errorf("%d inconsistent cache entries", result.Mismatches-result.Repaired)
	}
	return nil
}
