package protect

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/joshuapare/execalloc/internal/logger"
	"github.com/joshuapare/execalloc/internal/vmem"
	"github.com/joshuapare/execalloc/jit/pool"
)

// Plan is one candidate strategy together with the pool layout it needs.
type Plan struct {
	// Mode is the concrete strategy, never ModeAuto.
	Mode Mode

	// Pool holds the reservation options the strategy requires.
	Pool pool.Options

	fast  *FastPermissions
	thunk SeparateHeapFunc
}

// ReserveFunc reserves a pool. pool.Reserve in production.
type ReserveFunc func(pool.Options) (*pool.Pool, error)

// Candidates returns the plans for mode in preference order. The last plan
// of every list except ModeFast's reserves a plain read+execute pool, so
// Select fails only when no pool can be reserved at all.
func Candidates(mode Mode, size int, thunk SeparateHeapFunc) []Plan {
	private := pool.Options{Size: size, Mode: pool.MapPrivate, Prot: vmem.ProtRX}
	dual := pool.Options{Size: size, Mode: pool.MapDualShared}

	separate := func() Plan {
		if thunk != nil {
			return Plan{Mode: ModeSeparate, Pool: private, thunk: thunk}
		}
		return Plan{Mode: ModeSeparate, Pool: dual}
	}
	fast := func() (Plan, bool) {
		f, err := NewFastPermissions()
		if err != nil {
			logger.L.Debug("protect: fast permissions unavailable", zap.Error(err))
			return Plan{}, false
		}
		return Plan{Mode: ModeFast, Pool: f.PoolOptions(size), fast: f}, true
	}

	switch mode {
	case ModeFast:
		if p, ok := fast(); ok {
			return []Plan{p}
		}
		logger.L.Warn("protect: fast write mode requested but unsupported; pool writes will fail")
		return []Plan{{Mode: ModeNone, Pool: private}}
	case ModeSeparate:
		return []Plan{separate(), {Mode: ModeNone, Pool: private}}
	case ModeMprotect:
		return []Plan{{Mode: ModeMprotect, Pool: private}}
	case ModeNone:
		return []Plan{{Mode: ModeNone, Pool: private}}
	default:
		var plans []Plan
		if p, ok := fast(); ok {
			plans = append(plans, p)
		}
		if thunk != nil {
			plans = append(plans, Plan{Mode: ModeSeparate, Pool: private, thunk: thunk})
		}
		plans = append(plans, Plan{Mode: ModeSeparate, Pool: dual})
		return append(plans, Plan{Mode: ModeMprotect, Pool: private})
	}
}

// Bind returns the writer for a pool reserved with p.Pool.
func (p Plan) Bind(pl *pool.Pool) (Writer, error) {
	switch p.Mode {
	case ModeFast:
		return p.fast.Bind(pl), nil
	case ModeSeparate:
		if p.thunk != nil {
			return NewSeparateHeap(p.thunk, pl.Size()), nil
		}
		fn, err := DualMapping(pl)
		if err != nil {
			return nil, err
		}
		return NewSeparateHeap(fn, pl.Size()), nil
	case ModeMprotect:
		return NewProtectToggle(pl), nil
	case ModeNone:
		return Unavailable(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, p.Mode)
	}
}

// abandon releases resources held by a plan that was not used.
func (p Plan) abandon() {
	if p.fast != nil {
		_ = p.fast.Close()
	}
}

// Select reserves a pool for the first plan in plans that works and returns
// its writer. Plans after the chosen one are abandoned.
func Select(plans []Plan, reserve ReserveFunc) (Writer, *pool.Pool, error) {
	if len(plans) == 0 {
		return nil, nil, errors.New("protect: no candidate plans")
	}

	var errs error
	for i, plan := range plans {
		pl, err := reserve(plan.Pool)
		if err != nil {
			logger.L.Debug("protect: reservation failed for plan",
				zap.Stringer("mode", plan.Mode),
				zap.Stringer("layout", plan.Pool.Mode),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("%s/%s: %w", plan.Mode, plan.Pool.Mode, err))
			plan.abandon()
			continue
		}

		w, err := plan.Bind(pl)
		if err != nil {
			errs = multierr.Append(errs, err)
			errs = multierr.Append(errs, pl.Release())
			plan.abandon()
			continue
		}

		for _, rest := range plans[i+1:] {
			rest.abandon()
		}
		logger.L.Info("protect: selected write strategy",
			zap.String("writer", w.Name()),
			zap.Stringer("layout", pl.Mode()),
		)
		return w, pl, nil
	}
	return nil, nil, errs
}
