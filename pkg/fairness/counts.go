package fairness

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Counts holds per-group confusion counts. Positive means unfavorable.
type Counts struct {
	TP int `json:"tp" yaml:"tp"`
	FP int `json:"fp" yaml:"fp"`
	TN int `json:"tn" yaml:"tn"`
	FN int `json:"fn" yaml:"fn"`
}

// Total returns the number of counted records.
func (c Counts) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// FavorablePredicted returns the number of records predicted favorable.
func (c Counts) FavorablePredicted() int {
	return c.TN + c.FN
}

// UnfavorableTruth returns the number of records whose true label is unfavorable.
func (c Counts) UnfavorableTruth() int {
	return c.TP + c.FN
}

// FavorableTruth returns the number of records whose true label is favorable.
func (c Counts) FavorableTruth() int {
	return c.FP + c.TN
}

// FavorableRate is P(G), the share of records predicted favorable.
func (c Counts) FavorableRate() Value {
	return ratio(c.FavorablePredicted(), c.Total())
}

// TruePositiveRate is the recall on the unfavorable class.
func (c Counts) TruePositiveRate() Value {
	return ratio(c.TP, c.UnfavorableTruth())
}

// FalsePositiveRate is the share of true-favorable records predicted unfavorable.
func (c Counts) FalsePositiveRate() Value {
	return ratio(c.FP, c.FavorableTruth())
}

// Count makes one pass over the group and tallies its confusion counts.
func Count(g Group, favorable int) (Counts, error) {
	if !isBinary(favorable) {
		return Counts{}, fmt.Errorf("favorable value %d: %w", favorable, ErrInvalidAttributeValue)
	}

	var c Counts
	for i, r := range g.Records {
		if !isBinary(r.Predicted) || !isBinary(r.Truth) {
			return Counts{}, fmt.Errorf("%s record %d: %w", g.Name(), i, ErrInvalidAttributeValue)
		}

		predFav := r.Predicted == favorable
		truthFav := r.Truth == favorable
		switch {
		case !predFav && !truthFav:
			c.TP++
		case !predFav && truthFav:
			c.FP++
		case predFav && truthFav:
			c.TN++
		default:
			c.FN++
		}
	}
	return c, nil
}

// CountParallel counts both groups concurrently and joins before returning.
func CountParallel(ctx context.Context, priv, unpriv Group, favorable int) (Counts, Counts, error) {
	if err := ctx.Err(); err != nil {
		return Counts{}, Counts{}, err
	}

	var pc, uc Counts
	var g errgroup.Group
	g.Go(func() error {
		var err error
		pc, err = Count(priv, favorable)
		return err
	})
	g.Go(func() error {
		var err error
		uc, err = Count(unpriv, favorable)
		return err
	})

	if err := g.Wait(); err != nil {
		return Counts{}, Counts{}, err
	}
	return pc, uc, nil
}
