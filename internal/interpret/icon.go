// Package interpret turns raw readings into the values the dashboard shows:
// condition glyphs, rug advice, a severity score and display-unit strings.
// Everything here is pure and safe for concurrent use.
package interpret

import "strings"

// Condition glyphs.
const (
	IconThunderstorm = "⛈️"
	IconDrizzle      = "🌦️"
	IconRain         = "🌧️"
	IconSnow         = "❄️"
	IconMist         = "🌫️"
	IconClearDay     = "☀️"
	IconClearNight   = "🌕"
	IconCloudy       = "☁️"
	IconUnknown      = "🌡️"
)

// IconFor maps an OpenWeather condition code to a glyph. Only code 800
// (clear sky) depends on night.
func IconFor(code int, night bool) string {
	switch {
	case code >= 200 && code < 300:
		return IconThunderstorm
	case code >= 300 && code < 500:
		return IconDrizzle
	case code >= 500 && code < 600:
		return IconRain
	case code >= 600 && code < 700:
		return IconSnow
	case code >= 700 && code < 800:
		return IconMist
	case code == 800:
		if night {
			return IconClearNight
		}
		return IconClearDay
	case code > 800:
		return IconCloudy
	default:
		return IconUnknown
	}
}

// NightFromIconCode reads the day/night suffix of a provider icon code such
// as "01n". ok is false when the code is empty and night cannot be told.
func NightFromIconCode(iconCode string) (night, ok bool) {
	if iconCode == "" {
		return false, false
	}
	return strings.Contains(iconCode, "n"), true
}
