package tension

import (
	"fmt"
	"time"
)

// Classifier assigns a safety status to a tension value. It is pure:
// the same inputs always produce the same status.
type Classifier struct {
	// WarningPct is the percentage of reference tension at which a line
	// enters WARNING (default 120).
	WarningPct float64
	// CriticalMaxRatio is the fraction of max tension at which a line
	// enters CRITICAL (default 0.9).
	CriticalMaxRatio float64
}

// NewClassifier validates threshold ratios.
func NewClassifier(warningPct, criticalMaxRatio float64) (Classifier, error) {
	if warningPct <= 0 {
		return Classifier{}, fmt.Errorf("%w: warning percentage must be positive", ErrConfiguration)
	}
	if criticalMaxRatio <= 0 || criticalMaxRatio > 1 {
		return Classifier{}, fmt.Errorf("%w: critical ratio must be in (0, 1]", ErrConfiguration)
	}
	return Classifier{WarningPct: warningPct, CriticalMaxRatio: criticalMaxRatio}, nil
}

// Classify maps a tension value to NORMAL, WARNING or CRITICAL.
// A non-positive reference tension is a configuration fault, a negative
// tension value a sensor fault; neither is ever masked by clamping.
func (c Classifier) Classify(current, reference, max float64) (string, error) {
	if reference <= 0 {
		return "", fmt.Errorf("%w: reference tension %.3f", ErrConfiguration, reference)
	}
	if current < 0 {
		return "", fmt.Errorf("%w: negative tension %.3f", ErrInvalidReading, current)
	}
	if current >= max*c.CriticalMaxRatio {
		return StatusCritical, nil
	}
	if current/reference*100 >= c.WarningPct {
		return StatusWarning, nil
	}
	return StatusNormal, nil
}

// LifespanDecay models cumulative wear while a line is overloaded.
// Readings in WARNING or CRITICAL consume lifespan proportionally to
// the excess over reference tension and the time since the prior
// reading; NORMAL readings consume nothing.
type LifespanDecay struct {
	// PctPerOverloadHour is the lifespan percentage consumed per hour
	// spent at exactly twice the reference tension.
	PctPerOverloadHour float64
}

// Decrement returns the lifespan percentage consumed between two
// readings. The result is never negative.
func (d LifespanDecay) Decrement(status string, current, reference float64, elapsed time.Duration) float64 {
	if status == StatusNormal || reference <= 0 || elapsed <= 0 {
		return 0
	}
	excess := current/reference - 1
	if excess <= 0 {
		return 0
	}
	return d.PctPerOverloadHour * excess * elapsed.Hours()
}

// ApplyDecay subtracts a decrement from a remaining-lifespan
// percentage, flooring at zero.
func ApplyDecay(remaining, decrement float64) float64 {
	remaining -= decrement
	if remaining < 0 {
		return 0
	}
	return remaining
}
