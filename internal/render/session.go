package render

import (
	"sync"
	"time"

	"github.com/kjstillabower/paddock-weather/internal/models"
)

// Map defaults for the field view.
const (
	DefaultZoom        = 13
	CircleRadiusMetres = 300
	InitialCircleColor = "#888"
	CircleFillOpacity  = 0.5
)

// MapState is the map widget: centre, zoom and the severity circle.
type MapState struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Zoom        int     `json:"zoom"`
	Radius      float64 `json:"radius"`
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Notice is a user-facing failure message.
type Notice struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Session owns everything painted on the page. Safe for concurrent use.
type Session struct {
	loc  *time.Location
	name string

	mu      sync.RWMutex
	mapView MapState
	view    *View
	notices []Notice
}

// NewSession creates a session centred on the field. loc is the display
// time zone.
func NewSession(lat, lon float64, loc *time.Location) *Session {
	if loc == nil {
		loc = time.UTC
	}
	return &Session{
		loc:  loc,
		name: LocationName,
		mapView: MapState{
			Lat:         lat,
			Lon:         lon,
			Zoom:        DefaultZoom,
			Radius:      CircleRadiusMetres,
			Color:       InitialCircleColor,
			FillColor:   InitialCircleColor,
			FillOpacity: CircleFillOpacity,
		},
	}
}

// Paint replaces the view with one built from snap and recolours the circle.
func (s *Session) Paint(snap models.Snapshot) {
	v := BuildView(snap, s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	v.LocationName = s.name
	s.view = &v
	if v.SeverityColor != "" {
		s.mapView.Color = v.SeverityColor
		s.mapView.FillColor = v.SeverityColor
	}
}

// SetLocationName replaces the heading shown above the current conditions.
// Takes effect on the next Paint.
func (s *Session) SetLocationName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Notify queues one failure notice. The painted view is left as it was.
func (s *Session) Notify(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Message: FailureMessage, At: time.Now().UTC()})
}

// View returns the painted view; ok is false until the first Paint.
func (s *Session) View() (v View, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == nil {
		return View{}, false
	}
	return *s.view, true
}

// Map returns the current map state.
func (s *Session) Map() MapState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapView
}

// PendingNotifications returns queued notices without consuming them.
func (s *Session) PendingNotifications() []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

// TakeNotifications returns and clears queued notices.
func (s *Session) TakeNotifications() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// Page is everything a full render needs.
type Page struct {
	View          *View    `json:"view"`
	Map           MapState `json:"map"`
	Notifications []Notice `json:"notifications"`
}

// Capture returns the session as a Page. When consume is set, pending
// notices are handed over and cleared.
func (s *Session) Capture(consume bool) Page {
	var notices []Notice
	if consume {
		notices = s.TakeNotifications()
	} else {
		notices = s.PendingNotifications()
	}
	p := Page{Map: s.Map(), Notifications: notices}
	if v, ok := s.View(); ok {
		p.View = &v
	}
	return p
}
