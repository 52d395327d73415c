package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/paddock-weather/internal/models"
)

func sampleSnapshot() models.Snapshot {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	return models.Snapshot{
		Current: models.CurrentConditions{
			Temp:          6.5,
			FeelsLike:     -2.5,
			WindSpeed:     10,
			Rain1h:        0.25,
			ConditionCode: 800,
			Night:         true,
			Description:   "clear sky",
		},
		Forecast: []models.ForecastEntry{
			{Time: base, Temp: 4.5, ConditionCode: 800},
			{Time: base.Add(3 * time.Hour), Temp: -0.5, ConditionCode: 501},
		},
		Alerts:    []models.AlertItem{},
		Rug:       models.RugAdvisory{Advice: "Medium rug recommended", Level: models.RugCaution},
		Severity:  models.Severity{Score: 3.1, Band: models.SeverityHigh, Color: "#F44336"},
		FetchedAt: base,
	}
}

func TestBuildView(t *testing.T) {
	v := BuildView(sampleSnapshot(), time.UTC)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"location", v.LocationName, "Foal field (WR3–WR9 area)"},
		{"temp", v.Temp, "7"},
		{"feels like rounds half up", v.FeelsLike, "-2"},
		{"wind mph", v.WindSpeed, "22.4"},
		{"missing gust", v.WindGust, "0.0"},
		{"precipitation", v.Precipitation, "0.3"},
		{"night clear icon", v.Icon, "🌕"},
		{"rug class", v.RugClass, "caution"},
		{"no alerts placeholder", v.NoAlerts, NoAlertsPlaceholder},
		{"severity colour", v.SeverityColor, "#F44336"},
		{"first hour label", v.Hourly[0].Label, "9:00"},
		{"hourly ignores night", v.Hourly[0].Icon, "☀️"},
		{"hourly temp", v.Hourly[1].Temp, "0"},
		{"second hour label", v.Hourly[1].Label, "12:00"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if len(v.Alerts) != 0 {
		t.Errorf("Alerts = %v, want empty", v.Alerts)
	}
}

func TestBuildView_AlertsAndClasses(t *testing.T) {
	snap := sampleSnapshot()
	snap.Alerts = []models.AlertItem{{Title: "Yellow warning of ice", Description: "Icy patches"}}
	snap.Rug = models.RugAdvisory{Advice: "Heavy rug recommended", Level: models.RugDanger}

	v := BuildView(snap, time.UTC)
	if v.NoAlerts != "" {
		t.Errorf("NoAlerts = %q, want empty when alerts exist", v.NoAlerts)
	}
	if len(v.Alerts) != 1 || v.Alerts[0].Title != "Yellow warning of ice" {
		t.Errorf("Alerts = %+v", v.Alerts)
	}
	if v.RugClass != "danger" {
		t.Errorf("RugClass = %q, want danger", v.RugClass)
	}

	snap.Rug.Level = models.RugNormal
	if got := BuildView(snap, time.UTC).RugClass; got != "" {
		t.Errorf("RugClass = %q, want none for normal", got)
	}
}

func TestBuildView_HourInLocalZone(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	snap := sampleSnapshot()
	snap.Forecast = []models.ForecastEntry{{Time: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC), ConditionCode: 800}}

	v := BuildView(snap, london)
	if v.Hourly[0].Label != "13:00" {
		t.Errorf("label = %q, want 13:00 (BST)", v.Hourly[0].Label)
	}
}

func TestSession_PaintAndNotify(t *testing.T) {
	s := NewSession(52.24, -2.18, time.UTC)

	if _, ok := s.View(); ok {
		t.Fatal("View() ok = true before Paint")
	}
	m := s.Map()
	if m.Zoom != 13 || m.Radius != 300 || m.Color != "#888" || m.FillOpacity != 0.5 {
		t.Errorf("initial map = %+v", m)
	}

	s.Paint(sampleSnapshot())
	v, ok := s.View()
	if !ok || v.Temp != "7" {
		t.Fatalf("View() = %+v ok=%v", v, ok)
	}
	if m := s.Map(); m.Color != "#F44336" || m.FillColor != "#F44336" {
		t.Errorf("circle colour = %q/%q, want #F44336", m.Color, m.FillColor)
	}

	s.Notify(errors.New("upstream down"))
	after, _ := s.View()
	if after.Temp != v.Temp || after.UpdatedAt != v.UpdatedAt {
		t.Error("Notify changed the painted view")
	}

	if pending := s.PendingNotifications(); len(pending) != 1 {
		t.Fatalf("PendingNotifications() = %d, want 1", len(pending))
	}
	got := s.TakeNotifications()
	if len(got) != 1 || got[0].Message != FailureMessage {
		t.Errorf("TakeNotifications() = %+v", got)
	}
	if again := s.TakeNotifications(); len(again) != 0 {
		t.Errorf("second TakeNotifications() = %+v, want empty", again)
	}
}

func TestSession_SetLocationName(t *testing.T) {
	s := NewSession(52.24, -2.18, time.UTC)
	s.Paint(sampleSnapshot())
	if v, _ := s.View(); v.LocationName != LocationName {
		t.Errorf("LocationName = %q, want default %q", v.LocationName, LocationName)
	}

	s.SetLocationName("Top paddock")
	s.Paint(sampleSnapshot())
	if v, _ := s.View(); v.LocationName != "Top paddock" {
		t.Errorf("LocationName = %q, want Top paddock", v.LocationName)
	}
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s := NewSession(52.24, -2.18, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); s.Paint(sampleSnapshot()) }()
		go func() { defer wg.Done(); s.Notify(errors.New("x")) }()
		go func() { defer wg.Done(); _ = s.Capture(true) }()
	}
	wg.Wait()
}

func TestWriteHTML(t *testing.T) {
	s := NewSession(52.24, -2.18, time.UTC)
	snap := sampleSnapshot()
	snap.Alerts = []models.AlertItem{{Title: "<script>alert(1)</script>", Description: "Wind"}}
	s.Paint(snap)

	var buf bytes.Buffer
	if err := WriteHTML(&buf, s.Capture(false)); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Foal field (WR3–WR9 area)",
		`id="wind-speed">22.4<`,
		`class="caution"`,
		"9:00",
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"leaflet",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("alert title was not escaped")
	}
}

func TestWriteHTML_BeforeFirstPaint(t *testing.T) {
	s := NewSession(52.24, -2.18, time.UTC)
	s.Notify(errors.New("offline"))

	var buf bytes.Buffer
	if err := WriteHTML(&buf, s.Capture(false)); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Waiting for the first weather reading.") {
		t.Error("placeholder page not rendered")
	}
	if !strings.Contains(buf.String(), FailureMessage) {
		t.Error("failure notice not rendered")
	}
}

func TestWriteFile(t *testing.T) {
	s := NewSession(52.24, -2.18, time.UTC)
	s.Paint(sampleSnapshot())
	path := filepath.Join(t.TempDir(), "dashboard.html")

	if err := WriteFile(path, s.Capture(false)); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(b), "<!DOCTYPE html>") {
		t.Error("file is not an HTML page")
	}
}

func TestWriteJSON(t *testing.T) {
	s := NewSession(52.24, -2.18, time.UTC)
	s.Paint(sampleSnapshot())
	s.Notify(errors.New("x"))

	var buf bytes.Buffer
	if err := WriteJSON(&buf, s.Capture(true)); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var got struct {
		View struct {
			WindSpeed string `json:"windSpeed"`
			NoAlerts  string `json:"noAlerts"`
		} `json:"view"`
		Map           MapState `json:"map"`
		Notifications []Notice `json:"notifications"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.View.WindSpeed != "22.4" || got.View.NoAlerts != NoAlertsPlaceholder {
		t.Errorf("view = %+v", got.View)
	}
	if got.Map.Color != "#F44336" || len(got.Notifications) != 1 {
		t.Errorf("map=%+v notifications=%d", got.Map, len(got.Notifications))
	}
	if n := s.TakeNotifications(); len(n) != 0 {
		t.Error("Capture(true) did not consume notifications")
	}
}

func TestShellHandler(t *testing.T) {
	h := ShellHandler()
	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/", http.StatusOK, "text/html; charset=utf-8"},
		{"/index.html", http.StatusOK, "text/html; charset=utf-8"},
		{"/manifest.webmanifest", http.StatusOK, "application/manifest+json"},
		{"/pwa-192.png", http.StatusOK, "image/png"},
		{"/pwa-512.png", http.StatusOK, "image/png"},
		{"/missing.png", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.contentType != "" && w.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", w.Header().Get("Content-Type"), tt.contentType)
			}
		})
	}

	root := httptest.NewRecorder()
	h.ServeHTTP(root, httptest.NewRequest(http.MethodGet, "/", nil))
	index := httptest.NewRecorder()
	h.ServeHTTP(index, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	if !bytes.Equal(root.Body.Bytes(), index.Body.Bytes()) {
		t.Error("/ and /index.html differ")
	}
}
