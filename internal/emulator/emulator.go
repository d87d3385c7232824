// Package emulator predicts the linear matter power spectrum P(k) from six
// cosmological parameters. A prediction standardizes the parameters,
// regresses one coefficient per principal component, maps the coefficients
// back to log P(k) through the PCA basis and exponentiates.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/objones25/pkemu/internal/artifacts"
	"github.com/objones25/pkemu/internal/pca"
	"github.com/objones25/pkemu/internal/regression"
	"github.com/objones25/pkemu/internal/storage/cache"
)

// Emulator evaluates the loaded model. It holds no per-request state and is
// safe for concurrent use.
type Emulator struct {
	store    *artifacts.Store
	scaler   artifacts.Scaler
	basis    *pca.Basis
	ensemble regression.Ensemble
	bounds   artifacts.Bounds
	cfg      Config
	keys     *cache.KeyGenerator
}

// New creates an emulator over a loaded store
func New(store *artifacts.Store, cfg Config) (*Emulator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil artifact store", ErrArtifactLoad)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid emulator config: %w", err)
	}
	if cfg.BoundsPolicy == "" {
		cfg.BoundsPolicy = BoundsAllow
	}

	return &Emulator{
		store:    store,
		scaler:   store.Scaler(),
		basis:    store.Basis(),
		ensemble: store.Ensemble(),
		bounds:   store.Bounds(),
		cfg:      cfg,
		keys:     cache.NewKeyGenerator(store.Fingerprint()),
	}, nil
}

// Predict returns P(k) in (Mpc/h)^3 on the k-grid for the given parameters
func (e *Emulator) Predict(ctx context.Context, params ParameterVector) (pk PowerSpectrum, err error) {
	start := time.Now()
	defer func() {
		PredictionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			PredictionsTotal.WithLabelValues("error").Inc()
			ErrorsTotal.WithLabelValues(errorType(err)).Inc()
			return
		}
		PredictionsTotal.WithLabelValues("success").Inc()
	}()

	if err := params.Validate(); err != nil {
		return nil, NewError("predict", err, "")
	}

	x, err := e.applyBounds(params)
	if err != nil {
		return nil, err
	}

	key := ""
	if e.cfg.Cache != nil {
		key = e.keys.Key(x, string(UnitsH3))
		if cached := e.lookup(ctx, key); cached != nil {
			return cached, nil
		}
	}

	pk, err = e.compute(ctx, x)
	if err != nil {
		return nil, err
	}

	if e.cfg.Cache != nil {
		if err := e.cfg.Cache.Set(ctx, key, pk); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache prediction")
		}
	}
	return pk, nil
}

// compute runs the pipeline on a validated, policy-adjusted vector
func (e *Emulator) compute(ctx context.Context, x []float64) (PowerSpectrum, error) {
	scaled := e.scaler.Transform(x)

	stageStart := time.Now()
	coeffs, err := e.ensemble.PredictAll(ctx, scaled, e.cfg.Workers)
	ComponentDuration.Observe(time.Since(stageStart).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError("predict", err, "")
		}
		var ce *regression.ComponentError
		if errors.As(err, &ce) {
			return nil, predictionError("predict", err, fmt.Sprintf("principal component %d", ce.Index))
		}
		return nil, predictionError("predict", err, "")
	}

	logPk, err := e.basis.InverseTransform(coeffs)
	if err != nil {
		return nil, predictionError("predict", err, "inverse PCA transform")
	}

	pk := make(PowerSpectrum, len(logPk))
	for i, v := range logPk {
		p := math.Exp(v)
		if math.IsInf(p, 0) || math.IsNaN(p) || p <= 0 {
			return nil, predictionError("predict",
				fmt.Errorf("log P(k) = %v is not representable", v), fmt.Sprintf("k index %d", i))
		}
		pk[i] = p
	}
	return pk, nil
}

// Resolve returns the vector Predict evaluates for params: the clamped vector
// under BoundsClamp, otherwise a copy of params. Unit conversion of a
// prediction must use the resolved h.
func (e *Emulator) Resolve(params ParameterVector) ParameterVector {
	if e.cfg.BoundsPolicy == BoundsClamp {
		return ParameterVector(e.bounds.Clamp(params))
	}
	return append(ParameterVector(nil), params...)
}

// applyBounds enforces the bounds policy and returns the vector to predict at
func (e *Emulator) applyBounds(params ParameterVector) ([]float64, error) {
	x := []float64(params)
	outside := e.bounds.Outside(x)
	if len(outside) == 0 || e.cfg.BoundsPolicy == BoundsAllow {
		return append([]float64(nil), x...), nil
	}

	names := make([]string, len(outside))
	for i, idx := range outside {
		names[i] = ParameterNames[idx]
		OutOfBoundsTotal.WithLabelValues(names[i]).Inc()
	}

	switch e.cfg.BoundsPolicy {
	case BoundsReject:
		return nil, NewError("predict", ErrOutOfBounds, fmt.Sprintf("%v", names))
	case BoundsClamp:
		clamped := e.bounds.Clamp(x)
		log.Debug().
			Strs("parameters", names).
			Floats64("requested", x).
			Floats64("clamped", clamped).
			Msg("Clamped parameters to emulator bounds")
		return clamped, nil
	default:
		log.Warn().
			Strs("parameters", names).
			Floats64("requested", x).
			Msg("Parameters outside emulator bounds; prediction is an extrapolation")
		return append([]float64(nil), x...), nil
	}
}

func (e *Emulator) lookup(ctx context.Context, key string) PowerSpectrum {
	v, err := e.cfg.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		CacheMisses.Inc()
		return nil
	}
	if v == nil || len(v) != e.basis.Dim() {
		CacheMisses.Inc()
		return nil
	}
	CacheHits.Inc()
	return PowerSpectrum(v)
}

// PredictBatch predicts each vector in order and stops at the first failure
func (e *Emulator) PredictBatch(ctx context.Context, batch []ParameterVector) ([]PowerSpectrum, error) {
	out := make([]PowerSpectrum, len(batch))
	for i, params := range batch {
		pk, err := e.Predict(ctx, params)
		if err != nil {
			return nil, NewError("predict_batch", err, fmt.Sprintf("input %d", i))
		}
		out[i] = pk
	}
	return out, nil
}

// KGrid returns a copy of the wavenumbers in h/Mpc
func (e *Emulator) KGrid() []float64 {
	return e.store.KGrid()
}

// Bounds returns the advisory parameter bounds
func (e *Emulator) Bounds() artifacts.Bounds {
	return e.bounds
}

// Defaults returns the reference cosmology
func (e *Emulator) Defaults() ParameterVector {
	return DefaultParameters()
}

// Store returns the underlying artifact store
func (e *Emulator) Store() *artifacts.Store {
	return e.store
}

// Config returns the emulator configuration
func (e *Emulator) Config() Config {
	return e.cfg
}
