package models

import "time"

// CurrentConditions is the normalized current-conditions reading for the field.
// Optional upstream values (gust, rain, snow) are zero when absent.
type CurrentConditions struct {
	Temp          float64   `json:"temp"`
	FeelsLike     float64   `json:"feelsLike"`
	WindSpeed     float64   `json:"windSpeed"` // m/s
	WindGust      float64   `json:"windGust"`  // m/s
	Rain1h        float64   `json:"rain1h"`    // mm
	Snow1h        float64   `json:"snow1h"`    // mm
	ConditionCode int       `json:"conditionCode"`
	Night         bool      `json:"night"` // derived by the dashboard
	Description   string    `json:"description"`
	IconCode      string    `json:"iconCode,omitempty"`
	ObservedAt    time.Time `json:"observedAt"`
}

// ForecastEntry is one step of the 3-hourly forecast.
type ForecastEntry struct {
	Time          time.Time `json:"time"`
	Temp          float64   `json:"temp"`
	ConditionCode int       `json:"conditionCode"`
}

// AlertItem is one entry of the regional warnings feed, in feed order.
type AlertItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// RugLevel grades a rug advisory.
type RugLevel string

const (
	RugNormal  RugLevel = "normal"
	RugCaution RugLevel = "caution"
	RugDanger  RugLevel = "danger"
)

type RugAdvisory struct {
	Advice string   `json:"advice"`
	Level  RugLevel `json:"level"`
}

// SeverityBand is the colour band a severity score falls into.
type SeverityBand string

const (
	SeverityLow    SeverityBand = "low"
	SeverityMedium SeverityBand = "medium"
	SeverityHigh   SeverityBand = "high"
)

type Severity struct {
	Score float64      `json:"score"`
	Band  SeverityBand `json:"band"`
	Color string       `json:"color"`
}

// SunTimes holds sunrise and sunset for the field on the observation day.
type SunTimes struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}
