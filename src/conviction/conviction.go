package conviction

import (
	"fmt"
	"math"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

// Component weights applied to the four 0-100 inputs. Defaults favour value
// and momentum over volume and quality.
type Weights struct {
	Value    float64
	Momentum float64
	Volume   float64
	Quality  float64
}

func DefaultWeights() Weights {
	return Weights{Value: 0.30, Momentum: 0.30, Volume: 0.20, Quality: 0.20}
}

func (w Weights) sum() float64 {
	return w.Value + w.Momentum + w.Volume + w.Quality
}

// Normalized rescales the weight set so it sums to 1.0. Sets already within
// 0.01 of 1.0 are returned unchanged.
func (w Weights) Normalized() (Weights, error) {
	total := w.sum()
	if total <= 0 {
		return Weights{}, fmt.Errorf("conviction weights must sum to a positive value, got %v", total)
	}
	if w.Value < 0 || w.Momentum < 0 || w.Volume < 0 || w.Quality < 0 {
		return Weights{}, fmt.Errorf("conviction weights must not be negative: %+v", w)
	}

	if math.Abs(total-1.0) <= 0.01 {
		return w, nil
	}

	return Weights{
		Value:    w.Value / total,
		Momentum: w.Momentum / total,
		Volume:   w.Volume / total,
		Quality:  w.Quality / total,
	}, nil
}

// Scorer combines the four component scores into a single conviction score.
// It never rejects a ticker on its own; the caller decides whether a ticker
// has enough data to proceed, and components without data simply contribute
// zero to the weighted sum.
type Scorer struct {
	weights Weights
}

// NewScorer normalizes the supplied weights once at construction. A weight
// set that cannot be normalized is a configuration error.
func NewScorer(weights Weights) (*Scorer, error) {
	normalized, err := weights.Normalized()
	if err != nil {
		return nil, err
	}
	return &Scorer{weights: normalized}, nil
}

// Score blends the component scores with the configured weights and attaches
// advisory notes for any component at or above 70.
func (s *Scorer) Score(valueScore, momentumScore, volumeScore, qualityScore float64) model.ConvictionScore {
	score := model.ConvictionScore{
		ValueScore:     valueScore,
		MomentumScore:  momentumScore,
		VolumeScore:    volumeScore,
		QualityScore:   qualityScore,
		ValueWeight:    s.weights.Value,
		MomentumWeight: s.weights.Momentum,
		VolumeWeight:   s.weights.Volume,
		QualityWeight:  s.weights.Quality,
	}

	score.TotalScore = valueScore*s.weights.Value +
		momentumScore*s.weights.Momentum +
		volumeScore*s.weights.Volume +
		qualityScore*s.weights.Quality

	if valueScore >= 70 {
		score.Notes = append(score.Notes, "Strong value opportunity")
	}
	if momentumScore >= 70 {
		score.Notes = append(score.Notes, "Strong price momentum")
	}
	if volumeScore >= 70 {
		score.Notes = append(score.Notes, "Surging trading volume")
	}
	if qualityScore >= 70 {
		score.Notes = append(score.Notes, "Solid fundamental quality")
	}

	return score
}
