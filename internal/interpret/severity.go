package interpret

import "github.com/kjstillabower/paddock-weather/internal/models"

// Severity band colours.
const (
	ColorLow    = "#4CAF50"
	ColorMedium = "#FFC107"
	ColorHigh   = "#F44336"
)

const (
	mediumFrom  = 1.5
	highFrom    = 3.0
	windDivisor = 20.0
)

// TempComponent is 0 at or above Mild, then 1, 2 and 3 for each colder band.
// NaN scores 0.
func (t Thresholds) TempComponent(feelsLike float64) float64 {
	switch {
	case feelsLike < t.Mild && feelsLike >= t.Cool:
		return 1
	case feelsLike < t.Cool && feelsLike >= t.Cold:
		return 2
	case feelsLike < t.Cold:
		return 3
	default:
		return 0
	}
}

// Score sums the temperature band, wind (mph / 20) and a point for wet.
// The result is unbounded above.
func (t Thresholds) Score(feelsLike, windMph float64, wet bool) models.Severity {
	score := t.TempComponent(feelsLike) + windMph/windDivisor
	if wet {
		score++
	}
	return Classify(score)
}

// Classify maps a score to its band. Lower bounds are inclusive.
func Classify(score float64) models.Severity {
	switch {
	case score < mediumFrom:
		return models.Severity{Score: score, Band: models.SeverityLow, Color: ColorLow}
	case score < highFrom:
		return models.Severity{Score: score, Band: models.SeverityMedium, Color: ColorMedium}
	default:
		return models.Severity{Score: score, Band: models.SeverityHigh, Color: ColorHigh}
	}
}
