// Package movement turns raw readings into significance verdicts.
//
// Two reading shapes are supported: ratio-based readings (a reference value
// and a current value, as for stock prices) and presence-based readings (a
// count of unprocessed records, as for politician disclosures). Both produce
// a Verdict so callers can gate alerts without knowing which kind of entity
// they are looking at.
package movement

import (
	"fmt"
	"math"

	"stock-sentinel/internal/errors"
)

// DefaultThreshold is the price-movement significance threshold (1%).
const DefaultThreshold = 0.01

// Basis names how a verdict was derived.
type Basis string

const (
	RatioBased    Basis = "ratio"
	PresenceBased Basis = "presence"
)

// Verdict is the outcome of comparing a reading against its significance rule.
type Verdict interface {
	IsSignificant() bool
	Basis() Basis
	String() string
}

// Result is a ratio-based verdict.
type Result struct {
	ChangeRatio float64
	Significant bool
}

// IsSignificant implements Verdict.
func (r Result) IsSignificant() bool { return r.Significant }

// Basis implements Verdict.
func (r Result) Basis() Basis { return RatioBased }

func (r Result) String() string {
	return fmt.Sprintf("%+.2f%%", r.ChangeRatio*100)
}

// Presence is a presence-based verdict: significant when at least one
// unanalyzed record exists.
type Presence struct {
	Unanalyzed int
}

// IsSignificant implements Verdict.
func (p Presence) IsSignificant() bool { return p.Unanalyzed > 0 }

// Basis implements Verdict.
func (p Presence) Basis() Basis { return PresenceBased }

func (p Presence) String() string {
	return fmt.Sprintf("%d unanalyzed", p.Unanalyzed)
}

// Evaluate computes the signed relative change of current against reference
// and judges its magnitude against threshold (inclusive).
//
// reference must be a finite non-zero number and threshold must be positive.
func Evaluate(reference, current, threshold float64) (Result, error) {
	if reference == 0 || math.IsNaN(reference) || math.IsInf(reference, 0) {
		return Result{}, errors.Wrapf(errors.ErrInvalidReference, "reference %v", reference)
	}
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		return Result{}, errors.Wrapf(errors.ErrInvalidThreshold, "threshold %v", threshold)
	}

	ratio := current/reference - 1.0
	return Result{
		ChangeRatio: ratio,
		Significant: math.Abs(ratio) >= threshold,
	}, nil
}

// EvaluatePresence builds a presence-based verdict from a record count.
func EvaluatePresence(unanalyzed int) Presence {
	if unanalyzed < 0 {
		unanalyzed = 0
	}
	return Presence{Unanalyzed: unanalyzed}
}
