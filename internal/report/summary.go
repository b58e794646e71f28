// Package report summarises and plots recorded heading samples.
package report

import (
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/heading.report/internal/compass"
	"github.com/banshee-data/heading.report/internal/telemetry"
	"github.com/banshee-data/heading.report/internal/units"
)

// Summary describes one span of recorded samples.
type Summary struct {
	Samples     int           `json:"samples"`
	Measured    int           `json:"measured"`
	Disconnects int           `json:"disconnects"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Duration    time.Duration `json:"duration"`

	// MeanHeading is the circular mean of measured headings; nil when the
	// headings cancel out or there are none.
	MeanHeading *float64 `json:"mean_heading,omitempty"`

	MeanRates *[3]float64 `json:"mean_angular_rates,omitempty"`
	RateUnits string      `json:"rate_units,omitempty"`
	MinTemp   *int8       `json:"min_temperature,omitempty"`
	MaxTemp   *int8       `json:"max_temperature,omitempty"`
}

// Summarize computes a Summary over samples in recorded order.
func Summarize(samples []telemetry.Sample) Summary {
	var sum Summary
	sum.Samples = len(samples)
	if len(samples) == 0 {
		return sum
	}
	sum.Start = samples[0].Time
	sum.End = samples[len(samples)-1].Time
	sum.Duration = sum.End.Sub(sum.Start)

	var headings []float64
	var rates [3][]float64
	for _, s := range samples {
		if !s.Measured {
			if s.Status == telemetry.Disconnected {
				sum.Disconnects++
			}
			continue
		}
		sum.Measured++
		headings = append(headings, s.Heading)
		if s.AngularRates != nil {
			for i := range rates {
				rates[i] = append(rates[i], s.AngularRates[i])
			}
		}
		if s.Temperature != nil {
			t := *s.Temperature
			if sum.MinTemp == nil || t < *sum.MinTemp {
				sum.MinTemp = &t
			}
			if sum.MaxTemp == nil || t > *sum.MaxTemp {
				sum.MaxTemp = &t
			}
		}
	}

	if mean, ok := compass.CircularMean(headings); ok {
		sum.MeanHeading = &mean
	}
	if len(rates[0]) > 0 {
		var mr [3]float64
		for i := range mr {
			mr[i] = stat.Mean(rates[i], nil)
		}
		sum.MeanRates = &mr
		sum.RateUnits = units.DPS
	}
	return sum
}

// In returns s with its span in loc and its mean rates converted from deg/s
// to rateUnits.
func (s Summary) In(loc *time.Location, rateUnits string) Summary {
	if loc != nil {
		s.Start = s.Start.In(loc)
		s.End = s.End.In(loc)
	}
	if s.MeanRates != nil && s.RateUnits == units.DPS && units.IsValid(rateUnits) {
		var mr [3]float64
		for i, r := range s.MeanRates {
			mr[i] = units.ConvertRate(r, rateUnits)
		}
		s.MeanRates = &mr
		s.RateUnits = rateUnits
	}
	return s
}

// WriteText prints s as aligned key/value lines.
func (s Summary) WriteText(w io.Writer) error {
	heading := "n/a"
	if s.MeanHeading != nil {
		heading = compass.Format(*s.MeanHeading)
	}
	lines := []string{
		fmt.Sprintf("samples:      %d (%d measured)", s.Samples, s.Measured),
		fmt.Sprintf("disconnects:  %d", s.Disconnects),
		fmt.Sprintf("span:         %s .. %s (%s)", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), s.Duration),
		fmt.Sprintf("mean heading: %s", heading),
	}
	if s.MeanRates != nil {
		lines = append(lines, fmt.Sprintf("mean rates:   %.3f %.3f %.3f %s", s.MeanRates[0], s.MeanRates[1], s.MeanRates[2], s.RateUnits))
	}
	if s.MinTemp != nil && s.MaxTemp != nil {
		lines = append(lines, fmt.Sprintf("temperature:  %d .. %d", *s.MinTemp, *s.MaxTemp))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
