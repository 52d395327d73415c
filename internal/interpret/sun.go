package interpret

import (
	"fmt"
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/kjstillabower/paddock-weather/internal/models"
)

// SunTimes calculates sunrise and sunset at the given coordinates for the
// calendar day of date, returned in date's location.
func SunTimes(lat, lon float64, date time.Time) (models.SunTimes, error) {
	observer := astral.Observer{Latitude: lat, Longitude: lon}

	sunrise, err := astral.Sunrise(observer, date)
	if err != nil {
		return models.SunTimes{}, fmt.Errorf("calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(observer, date)
	if err != nil {
		return models.SunTimes{}, fmt.Errorf("calculate sunset: %w", err)
	}

	loc := date.Location()
	return models.SunTimes{Sunrise: sunrise.In(loc), Sunset: sunset.In(loc)}, nil
}

// IsNight reports whether t falls outside [Sunrise, Sunset).
func IsNight(sun models.SunTimes, t time.Time) bool {
	return t.Before(sun.Sunrise) || !t.Before(sun.Sunset)
}
