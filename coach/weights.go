package coach

import (
	"fmt"
	"math"
	"strings"
)

type Dimension string

const (
	DimWarmth     Dimension = "warmth"
	DimBrevity    Dimension = "brevity"
	DimHumor      Dimension = "humor"
	DimCuriosity  Dimension = "curiosity"
	DimFlirt      Dimension = "flirt"
	DimInviteRate Dimension = "inviteRate"
)

func AllDimensions() []Dimension {
	return []Dimension{DimWarmth, DimBrevity, DimHumor, DimCuriosity, DimFlirt, DimInviteRate}
}

func ParseDimension(s string) (Dimension, error) {
	for _, d := range AllDimensions() {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDimension, s)
}

// Weights holds the six bounded preference scores. On a User every
// dimension stays in [0,1]; as a Relationship.PrefDelta the values are
// unconstrained offsets and only the merged result is clamped.
type Weights struct {
	Warmth     float64 `json:"warmth"`
	Brevity    float64 `json:"brevity"`
	Humor      float64 `json:"humor"`
	Curiosity  float64 `json:"curiosity"`
	Flirt      float64 `json:"flirt"`
	InviteRate float64 `json:"inviteRate"`
}

func DefaultWeights() Weights {
	return Weights{
		Warmth:     0.70,
		Brevity:    0.55,
		Humor:      0.35,
		Curiosity:  0.75,
		Flirt:      0.25,
		InviteRate: 0.15,
	}
}

func (w Weights) Get(d Dimension) float64 {
	switch d {
	case DimWarmth:
		return w.Warmth
	case DimBrevity:
		return w.Brevity
	case DimHumor:
		return w.Humor
	case DimCuriosity:
		return w.Curiosity
	case DimFlirt:
		return w.Flirt
	case DimInviteRate:
		return w.InviteRate
	default:
		return 0
	}
}

func (w *Weights) Set(d Dimension, v float64) {
	switch d {
	case DimWarmth:
		w.Warmth = v
	case DimBrevity:
		w.Brevity = v
	case DimHumor:
		w.Humor = v
	case DimCuriosity:
		w.Curiosity = v
	case DimFlirt:
		w.Flirt = v
	case DimInviteRate:
		w.InviteRate = v
	}
}

// nudge adds delta to one dimension and clamps the result into [0,1].
func (w *Weights) nudge(d Dimension, delta float64) {
	w.Set(d, clamp01(w.Get(d)+delta))
}

func (w *Weights) clampAll() {
	for _, d := range AllDimensions() {
		w.Set(d, clamp01(w.Get(d)))
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// EffectiveWeights merges the user's global weights with the
// relationship's additive delta, clamping each dimension after the
// merge. Pure; no side effects.
func EffectiveWeights(u *User, rel *Relationship) Weights {
	merged := u.Weights
	if rel != nil {
		for _, d := range AllDimensions() {
			merged.Set(d, clamp01(u.Weights.Get(d)+rel.PrefDelta.Get(d)))
		}
	}
	merged.clampAll()
	return merged
}

// TuneWeight sets one dimension of the user's global weights, clamped
// into [0,1]. The dimension must be one of the known six and the value
// must be finite.
func TuneWeight(u *User, dimension string, value float64) (float64, error) {
	d, err := ParseDimension(dimension)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: not a finite number", ErrInvalidValue)
	}
	u.Weights.Set(d, clamp01(value))
	return u.Weights.Get(d), nil
}

// ResetWeights restores the default vector and clears the bandit
// counters accumulated so far.
func ResetWeights(u *User) {
	u.Weights = DefaultWeights()
	u.ModeStats = make(map[Mode]*BanditCounters, len(AllModes()))
	for _, m := range AllModes() {
		u.ModeStats[m] = &BanditCounters{}
	}
}

// WeightsSummary renders the compact one-line form used in prompts and
// status output.
func WeightsSummary(w Weights) string {
	return fmt.Sprintf("W:%.2f B:%.2f H:%.2f C:%.2f F:%.2f I:%.2f",
		w.Warmth, w.Brevity, w.Humor, w.Curiosity, w.Flirt, w.InviteRate)
}
