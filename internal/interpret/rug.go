package interpret

import (
	"math"

	"github.com/kjstillabower/paddock-weather/internal/models"
)

// Rug advice messages.
const (
	AdviceNoRug       = "No rug needed"
	AdviceLightIfWet  = "Light rug if foals are wet"
	AdviceLightOption = "Light rug optional"
	AdviceMedium      = "Medium rug recommended"
	AdviceHeavy       = "Heavy rug recommended"
)

// Thresholds are the feels-like temperature bands (°C) shared by the rug
// advisory and the severity score. Each bound is inclusive.
type Thresholds struct {
	Mild float64 `yaml:"mild"`
	Cool float64 `yaml:"cool"`
	Cold float64 `yaml:"cold"`
}

// DefaultThresholds are the bands used when nothing is configured.
var DefaultThresholds = Thresholds{Mild: 8, Cool: 4, Cold: -2}

// RugInput is what the advisory looks at. Temp and WindSpeed are carried
// for completeness; only FeelsLike and precipitation decide the outcome.
type RugInput struct {
	Temp      float64
	FeelsLike float64
	WindSpeed float64
	Rain      float64
	Snow      float64
}

// Wet reports whether either precipitation amount is set.
func (in RugInput) Wet() bool {
	return isSet(in.Rain) || isSet(in.Snow)
}

func isSet(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}

// Advise applies the rug rules in order; the first match wins. Wetness is
// ignored at or above Mild only when dry, so a wet mild day falls through to
// the Cool rule.
func (t Thresholds) Advise(in RugInput) models.RugAdvisory {
	wet := in.Wet()
	switch {
	case in.FeelsLike >= t.Mild && !wet:
		return models.RugAdvisory{Advice: AdviceNoRug, Level: models.RugNormal}
	case in.FeelsLike >= t.Cool:
		if wet {
			return models.RugAdvisory{Advice: AdviceLightIfWet, Level: models.RugCaution}
		}
		return models.RugAdvisory{Advice: AdviceLightOption, Level: models.RugNormal}
	case in.FeelsLike >= t.Cold:
		return models.RugAdvisory{Advice: AdviceMedium, Level: models.RugCaution}
	default:
		return models.RugAdvisory{Advice: AdviceHeavy, Level: models.RugDanger}
	}
}
