package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/heading.report/internal/httputil"
	"github.com/banshee-data/heading.report/internal/telemetry"
)

// handleHeadingChart renders recent recorded headings as an HTML line chart.
// Query params:
//   - limit (optional; default 600) number of samples to plot
func (s *Server) handleHeadingChart(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.NotFound(w, "recording disabled")
		return
	}
	limit, err := httputil.QueryLimit(r, defaultChartLimit, maxSampleLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	samples, err := s.store.RecentSamples(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load samples: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := renderHeadingChart(&buf, samples); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func renderHeadingChart(buf *bytes.Buffer, samples []telemetry.Sample) error {
	xs := make([]string, 0, len(samples))
	headings := make([]opts.LineData, 0, len(samples))
	var rates []opts.LineData
	for _, s := range samples {
		if !s.Measured {
			continue
		}
		xs = append(xs, s.Time.Format("15:04:05.000"))
		headings = append(headings, opts.LineData{Value: s.Heading})
		if s.AngularRates != nil {
			rates = append(rates, opts.LineData{Value: s.AngularRates[2]})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Compass Heading", Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Heading", Subtitle: fmt.Sprintf("samples=%d", len(headings))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "degrees", Min: 0, Max: 360}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xs).AddSeries("heading", headings, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	if len(rates) == len(headings) && len(rates) > 0 {
		line.AddSeries("yaw rate", rates, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(buf)
}
