// Package render turns dashboard snapshots into what the page shows: the
// painted view, the map circle, and failure notices.
package render

import (
	"fmt"
	"time"

	"github.com/kjstillabower/paddock-weather/internal/interpret"
	"github.com/kjstillabower/paddock-weather/internal/models"
)

const (
	LocationName        = "Foal field (WR3–WR9 area)"
	NoAlertsPlaceholder = "No active weather alerts."
	FailureMessage      = "Could not load weather. Check your API key or internet connection."
)

// HourBlock is one slot of the hourly strip.
type HourBlock struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Temp  string `json:"temp"`
}

// AlertView is one alert as shown in the alerts panel.
type AlertView struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// View holds the display strings for every field on the page.
type View struct {
	LocationName  string      `json:"locationName"`
	Temp          string      `json:"temp"`
	FeelsLike     string      `json:"feelsLike"`
	Description   string      `json:"description"`
	Icon          string      `json:"icon"`
	WindSpeed     string      `json:"windSpeed"`
	WindGust      string      `json:"windGust"`
	Precipitation string      `json:"precipitation"`
	RugAdvice     string      `json:"rugAdvice"`
	RugClass      string      `json:"rugClass,omitempty"`
	Alerts        []AlertView `json:"alerts"`
	NoAlerts      string      `json:"noAlerts,omitempty"`
	Hourly        []HourBlock `json:"hourly"`
	SeverityColor string      `json:"severityColor"`
	SeverityBand  string      `json:"severityBand"`
	SeverityScore float64     `json:"severityScore"`
	Sunrise       string      `json:"sunrise,omitempty"`
	Sunset        string      `json:"sunset,omitempty"`
	UpdatedAt     string      `json:"updatedAt"`
	Stale         bool        `json:"stale"`
}

// BuildView formats snap for display. Clock times use loc.
func BuildView(snap models.Snapshot, loc *time.Location) View {
	if loc == nil {
		loc = time.UTC
	}
	cur := snap.Current
	v := View{
		LocationName:  LocationName,
		Temp:          interpret.FormatWholeDegrees(cur.Temp),
		FeelsLike:     interpret.FormatWholeDegrees(cur.FeelsLike),
		Description:   cur.Description,
		Icon:          interpret.IconFor(cur.ConditionCode, cur.Night),
		WindSpeed:     interpret.FormatOneDecimal(interpret.MpsToMph(cur.WindSpeed)),
		WindGust:      interpret.FormatOneDecimal(interpret.MpsToMph(cur.WindGust)),
		Precipitation: interpret.FormatOneDecimal(cur.Rain1h + cur.Snow1h),
		RugAdvice:     snap.Rug.Advice,
		RugClass:      rugClass(snap.Rug.Level),
		SeverityColor: snap.Severity.Color,
		SeverityBand:  string(snap.Severity.Band),
		SeverityScore: snap.Severity.Score,
		UpdatedAt:     snap.FetchedAt.In(loc).Format("Jan 2, 2006 at 15:04"),
		Stale:         snap.Stale,
		Alerts:        make([]AlertView, 0, len(snap.Alerts)),
		Hourly:        make([]HourBlock, 0, len(snap.Forecast)),
	}

	for _, a := range snap.Alerts {
		v.Alerts = append(v.Alerts, AlertView{Title: a.Title, Description: a.Description, Link: a.Link})
	}
	if len(v.Alerts) == 0 {
		v.NoAlerts = NoAlertsPlaceholder
	}

	for _, f := range snap.Forecast {
		v.Hourly = append(v.Hourly, HourBlock{
			Label: fmt.Sprintf("%d:00", f.Time.In(loc).Hour()),
			Icon:  interpret.IconFor(f.ConditionCode, false),
			Temp:  interpret.FormatWholeDegrees(f.Temp),
		})
	}

	if snap.Sun != nil {
		v.Sunrise = snap.Sun.Sunrise.In(loc).Format("15:04")
		v.Sunset = snap.Sun.Sunset.In(loc).Format("15:04")
	}
	return v
}

func rugClass(level models.RugLevel) string {
	switch level {
	case models.RugCaution:
		return "caution"
	case models.RugDanger:
		return "danger"
	}
	return ""
}
