// Package api serves the live heading, recorded samples and pipeline
// counters over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/heading.report/internal/compass"
	"github.com/banshee-data/heading.report/internal/httputil"
	"github.com/banshee-data/heading.report/internal/monitoring"
	"github.com/banshee-data/heading.report/internal/serialport"
	"github.com/banshee-data/heading.report/internal/telemetry"
	"github.com/banshee-data/heading.report/internal/version"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

const (
	defaultSampleLimit = 100
	maxSampleLimit     = 5000
	defaultChartLimit  = 600
)

// SampleStore is the read side of the recorder.
type SampleStore interface {
	RecentSamples(limit int) ([]telemetry.Sample, error)
}

// LinkStater reports the serial link state.
type LinkStater interface {
	State() serialport.LinkState
}

type Server struct {
	display *telemetry.Display
	stats   telemetry.StatsSource
	link    LinkStater
	store   SampleStore
}

// NewServer builds the API. link and store may be nil when the service runs
// without a supervised link or without recording.
func NewServer(display *telemetry.Display, stats telemetry.StatsSource, link LinkStater, store SampleStore) *Server {
	return &Server{
		display: display,
		stats:   stats,
		link:    link,
		store:   store,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes plus the /debug/ chart.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/heading", s.showHeading)
	mux.HandleFunc("/api/samples", s.listSamples)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/version", s.showVersion)
	s.AttachAdminRoutes(mux)
	return mux
}

// AttachAdminRoutes mounts the heading chart under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("heading-chart", "Recent recorded headings", s.handleHeadingChart)
}

// HeadingResponse is the body of GET /api/heading.
type HeadingResponse struct {
	Status       telemetry.Status `json:"status"`
	Heading      *float64         `json:"heading_degrees"`
	Formatted    string           `json:"heading"`
	Time         *time.Time       `json:"time,omitempty"`
	AngularRates *[3]float64      `json:"smoothed_angular_rates,omitempty"`
	Temperature  *int8            `json:"temperature,omitempty"`
	Command      string           `json:"command,omitempty"`
	Error        string           `json:"error,omitempty"`
}

func (s *Server) showHeading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	resp := HeadingResponse{Status: s.display.Status(), Formatted: "---"}
	if h, ok := s.display.Heading(); ok {
		resp.Heading = &h
		resp.Formatted = compass.Format(h)
	}
	if last, ok := s.display.Last(); ok {
		t := last.Time
		resp.Time = &t
		resp.AngularRates = last.AngularRates
		resp.Temperature = last.Temperature
		resp.Command = last.Command
		resp.Error = last.Err
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.store == nil {
		httputil.NotFound(w, "recording disabled")
		return
	}

	limit, err := httputil.QueryLimit(r, defaultSampleLimit, maxSampleLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	samples, err := s.store.RecentSamples(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to load samples")
		monitoring.Logf("load samples: %v", err)
		return
	}
	if samples == nil {
		samples = []telemetry.Sample{}
	}
	httputil.WriteJSONOK(w, samples)
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Pipeline telemetry.Stats       `json:"pipeline"`
	Link     *serialport.LinkState `json:"link,omitempty"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := StatsResponse{}
	if s.stats != nil {
		resp.Pipeline = s.stats.Stats()
	}
	if s.link != nil {
		state := s.link.State()
		resp.Link = &state
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}
