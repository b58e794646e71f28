package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/heading.report/internal/telemetry"
)

// ErrNoMeasurements is returned by PlotHeadings when nothing was measured.
var ErrNoMeasurements = errors.New("no measured samples to plot")

var rateColors = [3]color.RGBA{
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
}

// PlotHeadings writes a PNG of heading against elapsed seconds. When the
// samples carry angular rates a second panel plots them below.
func PlotHeadings(samples []telemetry.Sample, path string) error {
	var start float64
	var started bool
	headings := make(plotter.XYs, 0, len(samples))
	var rates [3]plotter.XYs
	for _, s := range samples {
		if !s.Measured {
			continue
		}
		t := float64(s.Time.UnixNano()) / 1e9
		if !started {
			start, started = t, true
		}
		x := t - start
		headings = append(headings, plotter.XY{X: x, Y: s.Heading})
		if s.AngularRates != nil {
			for i := range rates {
				rates[i] = append(rates[i], plotter.XY{X: x, Y: s.AngularRates[i]})
			}
		}
	}
	if len(headings) == 0 {
		return ErrNoMeasurements
	}

	pHeading := plot.New()
	pHeading.Title.Text = "Heading"
	pHeading.X.Label.Text = "elapsed (s)"
	pHeading.Y.Label.Text = "degrees"
	pHeading.Y.Min, pHeading.Y.Max = 0, 360
	pHeading.Add(plotter.NewGrid())

	// Points: a line would sweep across the panel at every 359 -> 0 crossing.
	scatter, err := plotter.NewScatter(headings)
	if err != nil {
		return fmt.Errorf("heading series: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1)
	pHeading.Add(scatter)

	if len(rates[0]) == 0 {
		if err := pHeading.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		return nil
	}

	pRates := plot.New()
	pRates.Title.Text = "Smoothed angular rates"
	pRates.X.Label.Text = "elapsed (s)"
	pRates.Add(plotter.NewGrid())
	for i, name := range []string{"x", "y", "z"} {
		line, err := plotter.NewLine(rates[i])
		if err != nil {
			return fmt.Errorf("rate series %s: %w", name, err)
		}
		line.Width = vg.Points(1)
		line.Color = rateColors[i]
		pRates.Add(line)
		pRates.Legend.Add(name, line)
	}
	pRates.Legend.Top = true
	pRates.Legend.XOffs = -10

	img := vgimg.New(14*vg.Inch, 10*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadX: vg.Millimeter, PadY: 4 * vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{{pHeading}, {pRates}}, tiles, dc)
	pHeading.Draw(canvases[0][0])
	pRates.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
