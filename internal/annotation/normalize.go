// Package annotation turns raw annotation payloads returned by the capture
// command into labelled scores and reduces them to the labels worth tagging.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedPayload is reported when no known provider schema matches.
var ErrUnrecognizedPayload = errors.New("unrecognized annotation payload")

// Annotation is a single detected object with a score in [0,1].
type Annotation struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Provider identifies which response schema a payload was decoded with.
type Provider int

const (
	ProviderUnknown Provider = iota
	// ProviderSentiSight is a top-level list of {label, score} with 0-100 scores.
	ProviderSentiSight
	// ProviderVision is a Cloud Vision style {"responses":[{"localizedObjectAnnotations":[...]}]}.
	ProviderVision
)

func (p Provider) String() string {
	switch p {
	case ProviderSentiSight:
		return "sentisight"
	case ProviderVision:
		return "vision"
	default:
		return "unknown"
	}
}

// Result is the outcome of decoding one payload. Err is non-nil only for
// ProviderUnknown.
type Result struct {
	Provider    Provider
	Annotations []Annotation
	Err         error
}

type decoder struct {
	provider Provider
	decode   func(payload []byte) ([]Annotation, error)
}

// decoders are tried in order; the first one that succeeds wins.
var decoders = []decoder{
	{ProviderSentiSight, decodeSentiSight},
	{ProviderVision, decodeVision},
}

// Decode matches payload against every known provider schema.
func Decode(payload []byte) Result {
	var errs []error
	for _, d := range decoders {
		annotations, err := d.decode(payload)
		if err == nil {
			return Result{Provider: d.provider, Annotations: annotations}
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.provider, err))
	}
	return Result{
		Provider: ProviderUnknown,
		Err:      fmt.Errorf("%w: %w", ErrUnrecognizedPayload, errors.Join(errs...)),
	}
}

// Normalize returns the annotations in payload, or none if it cannot be decoded.
func Normalize(payload []byte) []Annotation {
	return Decode(payload).Annotations
}

type sentiSightRecord struct {
	Label *string  `json:"label"`
	Score *float64 `json:"score"`
}

func decodeSentiSight(payload []byte) ([]Annotation, error) {
	var records []sentiSightRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, err
	}
	if records == nil {
		return nil, errors.New("not a list")
	}

	annotations := make([]Annotation, 0, len(records))
	for i, r := range records {
		if r.Label == nil || r.Score == nil {
			return nil, fmt.Errorf("record %d: missing label or score", i)
		}
		annotations = append(annotations, Annotation{Label: *r.Label, Score: clamp(*r.Score / 100)})
	}
	return annotations, nil
}

type visionResponse struct {
	Responses []struct {
		LocalizedObjectAnnotations []struct {
			Name  *string  `json:"name"`
			Score *float64 `json:"score"`
		} `json:"localizedObjectAnnotations"`
	} `json:"responses"`
}

func decodeVision(payload []byte) ([]Annotation, error) {
	var resp visionResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return nil, errors.New("no responses")
	}

	var annotations []Annotation
	for i, r := range resp.Responses {
		for j, a := range r.LocalizedObjectAnnotations {
			if a.Name == nil || a.Score == nil {
				return nil, fmt.Errorf("response %d annotation %d: missing name or score", i, j)
			}
			annotations = append(annotations, Annotation{Label: *a.Name, Score: clamp(*a.Score)})
		}
	}
	return annotations, nil
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
