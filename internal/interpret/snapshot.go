package interpret

import (
	"time"

	"github.com/kjstillabower/paddock-weather/internal/models"
)

// HourlySlots is how many forecast entries the hourly strip shows
// (3-hour steps, about the next 12 hours).
const HourlySlots = 4

// Assemble derives rug advice and severity from one cycle's readings and
// packs them into a snapshot. forecast is trimmed to HourlySlots.
func (t Thresholds) Assemble(current models.CurrentConditions, forecast []models.ForecastEntry, alerts []models.AlertItem, sun *models.SunTimes, fetchedAt time.Time) models.Snapshot {
	in := RugInput{
		Temp:      current.Temp,
		FeelsLike: current.FeelsLike,
		WindSpeed: MpsToMph(current.WindSpeed),
		Rain:      current.Rain1h,
		Snow:      current.Snow1h,
	}
	rug := t.Advise(in)
	severity := t.Score(current.FeelsLike, in.WindSpeed, in.Wet())

	if len(forecast) > HourlySlots {
		forecast = forecast[:HourlySlots]
	}
	hourly := make([]models.ForecastEntry, len(forecast))
	copy(hourly, forecast)

	if alerts == nil {
		alerts = []models.AlertItem{}
	}

	return models.Snapshot{
		Current:   current,
		Forecast:  hourly,
		Alerts:    alerts,
		Rug:       rug,
		Severity:  severity,
		Sun:       sun,
		FetchedAt: fetchedAt,
	}
}
