package annotation

import "fmt"

// Filter keeps the annotations that are worth tagging and notifying about.
//
// A label is dropped when it is ignored or scores below DropScore. Between
// DropScore and MinScore it survives only if it is a priority label; at or
// above MinScore it always survives.
type Filter struct {
	DropScore float64
	MinScore  float64
	ignore    map[string]struct{}
	priority  map[string]struct{}
}

// NewFilter builds a Filter; dropScore must not exceed minScore.
func NewFilter(dropScore, minScore float64, ignore, priority []string) (*Filter, error) {
	if dropScore > minScore {
		return nil, fmt.Errorf("drop score %v exceeds min score %v", dropScore, minScore)
	}
	return &Filter{
		DropScore: dropScore,
		MinScore:  minScore,
		ignore:    toSet(ignore),
		priority:  toSet(priority),
	}, nil
}

// Interesting returns the surviving labels in input order. Duplicates are kept,
// they come from distinct detections in the same frame.
func (f *Filter) Interesting(annotations []Annotation) []string {
	labels := make([]string, 0, len(annotations))
	for _, a := range annotations {
		if _, ignored := f.ignore[a.Label]; ignored {
			continue
		}
		if a.Score < f.DropScore {
			continue
		}
		if _, prio := f.priority[a.Label]; a.Score < f.MinScore && !prio {
			continue
		}
		labels = append(labels, a.Label)
	}
	return labels
}

// Labels decodes payload and filters it. The Result is returned so callers can
// log decode failures; on failure the label list is empty.
func (f *Filter) Labels(payload []byte) ([]string, Result) {
	res := Decode(payload)
	return f.Interesting(res.Annotations), res
}

// Derive returns the interesting labels in payload, treating a payload that
// cannot be decoded as one without annotations.
func (f *Filter) Derive(payload []byte) []string {
	labels, _ := f.Labels(payload)
	return labels
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
