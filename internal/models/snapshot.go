package models

import "time"

// Snapshot is everything one successful refresh cycle produced.
// Stale is set when the snapshot is being shown after a failed cycle or
// was restored from the snapshot cache.
type Snapshot struct {
	Current   CurrentConditions `json:"current"`
	Forecast  []ForecastEntry   `json:"forecast"`
	Alerts    []AlertItem       `json:"alerts"`
	Rug       RugAdvisory       `json:"rug"`
	Severity  Severity          `json:"severity"`
	Sun       *SunTimes         `json:"sun,omitempty"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Stale     bool              `json:"stale,omitempty"`
}
