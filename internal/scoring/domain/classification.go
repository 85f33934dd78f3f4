package domain

import (
	"fmt"
	"time"
)

// MomentumLevel is the discrete momentum bucket.
type MomentumLevel int

const (
	MomentumNone MomentumLevel = iota
	MomentumLow
	MomentumMedium
	MomentumHigh
)

var momentumLevelNames = [...]string{"none", "low", "medium", "high"}

func (l MomentumLevel) String() string {
	if l < MomentumNone || l > MomentumHigh {
		return "none"
	}
	return momentumLevelNames[l]
}

// ParseMomentumLevel converts a stored level name. Unknown names map to none.
func ParseMomentumLevel(value string) MomentumLevel {
	for i, name := range momentumLevelNames {
		if name == value {
			return MomentumLevel(i)
		}
	}
	return MomentumNone
}

func (l MomentumLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *MomentumLevel) UnmarshalText(data []byte) error {
	*l = ParseMomentumLevel(string(data))
	return nil
}

// Momentum is the recency-weighted activity signal for one lead.
type Momentum struct {
	Score                int           `json:"score"`
	Level                MomentumLevel `json:"level"`
	ActionsLastHour      int           `json:"actionsLastHour"`
	ActionsLast24h       int           `json:"actionsLast24h"`
	ActionsLast72h       int           `json:"actionsLast72h"`
	ActionsLast7d        int           `json:"actionsLast7d"`
	SurgeDetected        bool          `json:"surgeDetected"`
	LastHighIntentAction *time.Time    `json:"lastHighIntentAction,omitempty"`
	LastHighIntentType   string        `json:"lastHighIntentType,omitempty"`
}

// ScoreTier buckets the static total score.
type ScoreTier int

const (
	TierLow ScoreTier = iota
	TierMedium
	TierHigh
)

func (t ScoreTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

// Classification is the final lead priority label.
type Classification int

const (
	ClassCold Classification = iota
	ClassQualified
	ClassWarm
	ClassHot
)

var classificationNames = [...]string{"cold", "qualified", "warm", "hot"}

func (c Classification) String() string {
	if c < ClassCold || c > ClassHot {
		return "cold"
	}
	return classificationNames[c]
}

// ParseClassification converts a stored classification name.
func ParseClassification(value string) (Classification, error) {
	for i, name := range classificationNames {
		if name == value {
			return Classification(i), nil
		}
	}
	return ClassCold, fmt.Errorf("unknown classification %q", value)
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Classification) UnmarshalText(data []byte) error {
	parsed, err := ParseClassification(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
