package fairness

import (
	"context"
	"fmt"
)

// Metric names a group fairness statistic.
type Metric string

const (
	StatisticalParityDifference Metric = "statistical_parity_difference"
	DisparateImpact             Metric = "disparate_impact"
	EqualOpportunityDifference  Metric = "equal_opportunity_difference"
	AverageOddsDifference       Metric = "average_odds_difference"
	FalsePositiveRateDifference Metric = "false_positive_rate_difference"
)

// Metrics lists every computed metric in report order.
var Metrics = []Metric{
	StatisticalParityDifference,
	DisparateImpact,
	EqualOpportunityDifference,
	AverageOddsDifference,
	FalsePositiveRateDifference,
}

// Title returns the human readable metric name.
func (m Metric) Title() string {
	switch m {
	case StatisticalParityDifference:
		return "Statistical Parity Difference"
	case DisparateImpact:
		return "Disparate Impact"
	case EqualOpportunityDifference:
		return "Equal Opportunity Difference"
	case AverageOddsDifference:
		return "Average Odds Difference"
	case FalsePositiveRateDifference:
		return "False Positive Rate Difference"
	default:
		return string(m)
	}
}

// Result maps each metric to its value.
type Result map[Metric]Value

// Get returns the value for m, undefined when absent.
func (r Result) Get(m Metric) Value {
	v, ok := r[m]
	if !ok {
		return Undefined
	}
	return v
}

// Compute counts both groups and derives the fairness metrics, unprivileged
// relative to privileged.
func Compute(priv, unpriv Group, favorable int) (Result, error) {
	if err := checkGroups(priv, unpriv); err != nil {
		return nil, err
	}

	pc, err := Count(priv, favorable)
	if err != nil {
		return nil, err
	}
	uc, err := Count(unpriv, favorable)
	if err != nil {
		return nil, err
	}
	return ComputeCounts(pc, uc)
}

// ComputeParallel is Compute with the two counting passes run concurrently.
func ComputeParallel(ctx context.Context, priv, unpriv Group, favorable int) (Result, error) {
	if err := checkGroups(priv, unpriv); err != nil {
		return nil, err
	}

	pc, uc, err := CountParallel(ctx, priv, unpriv, favorable)
	if err != nil {
		return nil, err
	}
	return ComputeCounts(pc, uc)
}

// ComputeCounts derives the fairness metrics from precomputed group counts.
func ComputeCounts(priv, unpriv Counts) (Result, error) {
	if priv.Total() == 0 {
		return nil, fmt.Errorf("privileged group: %w", ErrEmptyGroup)
	}
	if unpriv.Total() == 0 {
		return nil, fmt.Errorf("unprivileged group: %w", ErrEmptyGroup)
	}

	tprDiff := unpriv.TruePositiveRate().sub(priv.TruePositiveRate())
	fprDiff := unpriv.FalsePositiveRate().sub(priv.FalsePositiveRate())

	return Result{
		StatisticalParityDifference: unpriv.FavorableRate().sub(priv.FavorableRate()),
		DisparateImpact:             unpriv.FavorableRate().div(priv.FavorableRate()),
		EqualOpportunityDifference:  tprDiff,
		AverageOddsDifference:       mean(fprDiff, tprDiff),
		FalsePositiveRateDifference: fprDiff,
	}, nil
}

func checkGroups(priv, unpriv Group) error {
	if priv.Len() == 0 {
		return fmt.Errorf("%s group: %w", priv.Name(), ErrEmptyGroup)
	}
	if unpriv.Len() == 0 {
		return fmt.Errorf("%s group: %w", unpriv.Name(), ErrEmptyGroup)
	}
	return nil
}
