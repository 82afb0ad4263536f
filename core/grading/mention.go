package grading

import "github.com/pkg/errors"

// Mention is the qualitative tier of an average, ordered from worst to best.
type Mention int

const (
	Fail Mention = iota
	Pass
	Fair
	Good
	Excellent
)

var (
	mentionLabels = map[Mention]string{
		Excellent: "Très Bien",
		Good:      "Bien",
		Fair:      "Assez Bien",
		Pass:      "Passable",
		Fail:      "Insuffisant",
	}
	mentionKeys = map[Mention]string{
		Excellent: "excellent",
		Good:      "good",
		Fair:      "fair",
		Pass:      "pass",
		Fail:      "fail",
	}

	// lower bounds are inclusive; the first match wins
	mentionThresholds = []struct {
		min     float64
		mention Mention
	}{
		{16, Excellent},
		{14, Good},
		{12, Fair},
		{10, Pass},
	}
)

// Classify maps an average to its mention. NaN and anything below 10 fail.
func Classify(average float64) Mention {
	for _, t := range mentionThresholds {
		if average >= t.min {
			return t.mention
		}
	}
	return Fail
}

// Label returns the french label printed on bulletins.
func (m Mention) Label() string {
	if l, ok := mentionLabels[m]; ok {
		return l
	}
	return mentionLabels[Fail]
}

func (m Mention) String() string { return m.Label() }

func (m Mention) MarshalText() ([]byte, error) {
	if k, ok := mentionKeys[m]; ok {
		return []byte(k), nil
	}
	return nil, errors.Errorf("invalid mention %d", int(m))
}

func (m *Mention) UnmarshalText(text []byte) error {
	for mention, key := range mentionKeys {
		if key == string(text) {
			*m = mention
			return nil
		}
	}
	return errors.Errorf("unknown mention %q", string(text))
}
