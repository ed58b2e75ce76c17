package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mchmarny/fairaudit/pkg/data"
	"github.com/mchmarny/fairaudit/pkg/fairness"
)

// report renders one audit for the console.
type report struct {
	*data.Audit
}

func (r *report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Audit)
}

func (r *report) MarshalYAML() (any, error) {
	return r.Audit, nil
}

func (r *report) writeText(w io.Writer) error {
	var sb strings.Builder
	a := r.Audit

	fmt.Fprintf(&sb, "\n---- DATASET ----\n")
	if a.ID != "" {
		fmt.Fprintf(&sb, "Audit: %s\n", a.ID)
	}
	fmt.Fprintf(&sb, "Source: %s\n", a.Source)
	fmt.Fprintf(&sb, "Protected: %s (privileged: %s)\n", a.Protected, strings.Join(a.Privileged, ", "))
	prediction := a.Prediction
	if prediction == "" {
		prediction = a.Label
	}
	fmt.Fprintf(&sb, "Label: %s, prediction: %s, favorable: %d\n", a.Label, prediction, a.Favorable)
	fmt.Fprintf(&sb, "Rows: %d, records: %d, missing: %d, invalid: %d\n", a.Rows, a.Records, a.Missing, a.Invalid)

	fmt.Fprintf(&sb, "\n---- GROUPS ----\n")
	for _, g := range a.Groups {
		fmt.Fprintf(&sb, "%s: size=%d base_rate=%s favorable_rate=%s mean_score=%s\n",
			g.Group, g.Size, g.BaseRate, g.FavorableRate, g.MeanScore)
	}

	fmt.Fprintf(&sb, "\n---- FAIRNESS METRICS ----\n")
	for _, m := range fairness.Metrics {
		fmt.Fprintf(&sb, "%s: %s\n", m.Title(), a.Metrics.Get(m))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
