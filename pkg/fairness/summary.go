package fairness

import (
	"gonum.org/v1/gonum/stat"
)

// Summary describes one group independently of the other.
type Summary struct {
	Group         string `json:"group" yaml:"group"`
	Size          int    `json:"size" yaml:"size"`
	Counts        Counts `json:"counts" yaml:"counts"`
	BaseRate      Value  `json:"base_rate" yaml:"base_rate"`
	FavorableRate Value  `json:"favorable_rate" yaml:"favorable_rate"`
	MeanScore     Value  `json:"mean_score" yaml:"mean_score"`
}

// Summarize returns the group size, its unfavorable base rate (share of
// records whose true label is unfavorable), its favorable prediction rate
// and the mean risk score over records that carry one.
func Summarize(g Group, favorable int) (*Summary, error) {
	c, err := Count(g, favorable)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(g.Records))
	for _, r := range g.Records {
		if r.HasScore {
			scores = append(scores, r.Score)
		}
	}

	s := &Summary{
		Group:         g.Name(),
		Size:          g.Len(),
		Counts:        c,
		BaseRate:      ratio(c.UnfavorableTruth(), c.Total()),
		FavorableRate: c.FavorableRate(),
		MeanScore:     Undefined,
	}
	if len(scores) > 0 {
		s.MeanScore = Defined(stat.Mean(scores, nil))
	}
	return s, nil
}
