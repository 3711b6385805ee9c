package wallet

import (
	"fmt"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// Strategy is one named way of producing a value. Strategies are tried in
// order, each at most once.
type Strategy[T any] struct {
	Name string
	Run  func() (T, error)
}

// attempt is the tagged result of running one strategy.
type attempt[T any] struct {
	value T
	err   error
}

// try runs fn and converts a panic into an error.
func try[T any](fn func() (T, error)) (a attempt[T]) {
	defer func() {
		if r := recover(); r != nil {
			a = attempt[T]{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn()
	return attempt[T]{value: v, err: err}
}

// firstSuccess runs strategies in order and returns the first value
// produced without error, together with the winning strategy's name.
// When all fail it returns a *DerivationError of the given kind listing
// every failure.
func firstSuccess[T any](op string, kind error, strategies []Strategy[T]) (T, string, error) {
	var failures []StrategyFailure
	for _, s := range strategies {
		a := try(s.Run)
		if a.err == nil {
			if len(failures) > 0 {
				klog.Wallet.Info().Str("op", op).Str("strategy", s.Name).
					Int("failed_before", len(failures)).Msg("Fallback strategy succeeded")
			}
			return a.value, s.Name, nil
		}
		klog.Wallet.Warn().Str("op", op).Str("strategy", s.Name).Err(a.err).Msg("Strategy failed")
		failures = append(failures, StrategyFailure{Strategy: s.Name, Err: a.err})
	}
	var zero T
	return zero, "", &DerivationError{Op: op, Kind: kind, Failures: failures}
}
