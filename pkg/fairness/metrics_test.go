package fairness

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	favorable   = 0
	unfavorable = 1
	delta       = 1e-9
)

// outcomes builds a group where the predicted label equals the true label.
func outcomes(privileged bool, labels ...int) Group {
	g := Group{Privileged: privileged}
	protected := 0
	if privileged {
		protected = 1
	}
	for _, l := range labels {
		g.Records = append(g.Records, Record{Protected: protected, Predicted: l, Truth: l})
	}
	return g
}

func pairs(privileged bool, predTruth ...[2]int) Group {
	g := Group{Privileged: privileged}
	for _, p := range predTruth {
		g.Records = append(g.Records, Record{Predicted: p[0], Truth: p[1]})
	}
	return g
}

func assertValue(t *testing.T, expected float64, v Value) {
	t.Helper()
	require.True(t, v.Defined, "expected defined value %v", expected)
	assert.InDelta(t, expected, v.Value, delta)
}

func TestCompute_IdenticalGroups(t *testing.T) {
	labels := []int{favorable, unfavorable, favorable, favorable, unfavorable}
	res, err := Compute(outcomes(true, labels...), outcomes(false, labels...), favorable)
	require.NoError(t, err)

	assertValue(t, 0, res.Get(StatisticalParityDifference))
	assertValue(t, 1, res.Get(DisparateImpact))
	assertValue(t, 0, res.Get(EqualOpportunityDifference))
	assertValue(t, 0, res.Get(AverageOddsDifference))
	assertValue(t, 0, res.Get(FalsePositiveRateDifference))
}

func TestCompute_RateGap(t *testing.T) {
	priv := outcomes(true, favorable, favorable, unfavorable)
	unpriv := outcomes(false, unfavorable, unfavorable, favorable)

	res, err := Compute(priv, unpriv, favorable)
	require.NoError(t, err)

	assertValue(t, -1.0/3.0, res.Get(StatisticalParityDifference))
	assertValue(t, 0.5, res.Get(DisparateImpact))
}

func TestCompute_ZeroDisparateImpactIsDefined(t *testing.T) {
	priv := outcomes(true, slices.Repeat([]int{favorable}, 10)...)
	unpriv := outcomes(false, slices.Repeat([]int{unfavorable}, 10)...)

	res, err := Compute(priv, unpriv, favorable)
	require.NoError(t, err)

	assertValue(t, 0, res.Get(DisparateImpact))
	assertValue(t, -1, res.Get(StatisticalParityDifference))

	// privileged has no true-unfavorable records, unprivileged no true-favorable ones
	assert.False(t, res.Get(EqualOpportunityDifference).Defined)
	assert.False(t, res.Get(FalsePositiveRateDifference).Defined)
	assert.False(t, res.Get(AverageOddsDifference).Defined)
}

func TestCompute_DisparateImpactUndefined(t *testing.T) {
	priv := outcomes(true, unfavorable, unfavorable)
	unpriv := outcomes(false, favorable, unfavorable)

	res, err := Compute(priv, unpriv, favorable)
	require.NoError(t, err)

	assert.False(t, res.Get(DisparateImpact).Defined)
	assertValue(t, 0.5, res.Get(StatisticalParityDifference))
}

func TestCompute_EmptyGroup(t *testing.T) {
	full := outcomes(true, favorable)

	_, err := Compute(Group{Privileged: true}, outcomes(false, favorable), favorable)
	assert.ErrorIs(t, err, ErrEmptyGroup)

	res, err := Compute(full, Group{}, favorable)
	assert.ErrorIs(t, err, ErrEmptyGroup)
	assert.Nil(t, res)
}

func TestCompute_InvalidFavorable(t *testing.T) {
	_, err := Compute(outcomes(true, 0), outcomes(false, 1), 2)
	assert.ErrorIs(t, err, ErrInvalidAttributeValue)
}

func TestCompute_DistinctPredictions(t *testing.T) {
	// (predicted, truth)
	priv := pairs(true, [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0}, [2]int{0, 0})
	unpriv := pairs(false, [2]int{1, 1}, [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0})

	res, err := Compute(priv, unpriv, favorable)
	require.NoError(t, err)

	assertValue(t, -0.2, res.Get(StatisticalParityDifference))
	assertValue(t, 2.0/3.0, res.Get(DisparateImpact))
	assertValue(t, 1.0/6.0, res.Get(EqualOpportunityDifference))
	assertValue(t, 1.0/6.0, res.Get(FalsePositiveRateDifference))
	assertValue(t, 1.0/6.0, res.Get(AverageOddsDifference))
}

func TestCompute_FavorablePolarity(t *testing.T) {
	priv := outcomes(true, 0, 0, 1)
	unpriv := outcomes(false, 1, 1, 0)

	zero, err := Compute(priv, unpriv, 0)
	require.NoError(t, err)
	one, err := Compute(priv, unpriv, 1)
	require.NoError(t, err)

	assertValue(t, -1.0/3.0, zero.Get(StatisticalParityDifference))
	assertValue(t, 1.0/3.0, one.Get(StatisticalParityDifference))
	assertValue(t, 2, one.Get(DisparateImpact))
}

func TestCompute_PermutationInvariance(t *testing.T) {
	priv := pairs(true, [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0}, [2]int{0, 0}, [2]int{0, 1})
	unpriv := pairs(false, [2]int{1, 1}, [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0})

	want, err := Compute(priv, unpriv, favorable)
	require.NoError(t, err)

	rnd := rand.New(rand.NewPCG(7, 11))
	for range 20 {
		p := Group{Privileged: true, Records: slices.Clone(priv.Records)}
		u := Group{Records: slices.Clone(unpriv.Records)}
		rnd.Shuffle(len(p.Records), func(i, j int) { p.Records[i], p.Records[j] = p.Records[j], p.Records[i] })
		rnd.Shuffle(len(u.Records), func(i, j int) { u.Records[i], u.Records[j] = u.Records[j], u.Records[i] })

		got, err := Compute(p, u, favorable)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestComputeParallel(t *testing.T) {
	priv := pairs(true, [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0})
	unpriv := pairs(false, [2]int{1, 1}, [2]int{0, 0}, [2]int{0, 1})

	want, err := Compute(priv, unpriv, favorable)
	require.NoError(t, err)

	got, err := ComputeParallel(context.Background(), priv, unpriv, favorable)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ComputeParallel(context.Background(), priv, Group{}, favorable)
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestCountParallel_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := CountParallel(ctx, outcomes(true, 0), outcomes(false, 1), favorable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCount(t *testing.T) {
	g := pairs(true, [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0}, [2]int{0, 0})
	c, err := Count(g, favorable)
	require.NoError(t, err)

	assert.Equal(t, Counts{TP: 1, FN: 1, FP: 1, TN: 2}, c)
	assert.Equal(t, 5, c.Total())
	assert.Equal(t, 3, c.FavorablePredicted())
	assert.Equal(t, 2, c.UnfavorableTruth())
	assert.Equal(t, 3, c.FavorableTruth())
	assertValue(t, 0.5, c.TruePositiveRate())
	assertValue(t, 1.0/3.0, c.FalsePositiveRate())
}

func TestComputeCounts_Empty(t *testing.T) {
	_, err := ComputeCounts(Counts{}, Counts{TN: 1})
	assert.ErrorIs(t, err, ErrEmptyGroup)
	_, err = ComputeCounts(Counts{TN: 1}, Counts{})
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestValue_JSON(t *testing.T) {
	res := Result{
		DisparateImpact:             Undefined,
		StatisticalParityDifference: Defined(0),
	}
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"disparate_impact":null,"statistical_parity_difference":0}`, string(b))

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, res, back)
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "undefined", Undefined.String())
	assert.Equal(t, "0.5", Defined(0.5).String())
}

func TestResult_GetMissing(t *testing.T) {
	assert.False(t, Result{}.Get(DisparateImpact).Defined)
}

func TestMetric_Title(t *testing.T) {
	for _, m := range Metrics {
		assert.NotEqual(t, string(m), m.Title())
	}
}
