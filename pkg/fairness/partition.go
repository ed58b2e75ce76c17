package fairness

import "fmt"

// Partition splits records into privileged and unprivileged groups by
// comparing each protected attribute with the privileged value.
// Relative order is retained within each group.
func Partition(records []Record, privileged int) (Group, Group, error) {
	if !isBinary(privileged) {
		return Group{}, Group{}, fmt.Errorf("privileged value %d: %w", privileged, ErrInvalidAttributeValue)
	}

	for i, r := range records {
		if err := r.validate(); err != nil {
			return Group{}, Group{}, fmt.Errorf("record %d: %w", i, err)
		}
	}

	priv, unpriv := split(records, func(r Record) bool {
		return r.Protected == privileged
	})
	return priv, unpriv, nil
}

// PartitionBy splits records using an injected membership predicate.
// Labels are still validated.
func PartitionBy(records []Record, isPrivileged func(Record) bool) (Group, Group, error) {
	if isPrivileged == nil {
		return Group{}, Group{}, fmt.Errorf("privileged predicate required")
	}

	for i, r := range records {
		if !isBinary(r.Predicted) || !isBinary(r.Truth) {
			return Group{}, Group{}, fmt.Errorf("record %d: labels %d/%d: %w", i, r.Predicted, r.Truth, ErrInvalidAttributeValue)
		}
	}

	priv, unpriv := split(records, isPrivileged)
	return priv, unpriv, nil
}

func split(records []Record, isPrivileged func(Record) bool) (Group, Group) {
	priv := Group{Privileged: true, Records: make([]Record, 0, len(records)/2)}
	unpriv := Group{Privileged: false, Records: make([]Record, 0, len(records)/2)}

	for _, r := range records {
		if isPrivileged(r) {
			priv.Records = append(priv.Records, r)
			continue
		}
		unpriv.Records = append(unpriv.Records, r)
	}
	return priv, unpriv
}
