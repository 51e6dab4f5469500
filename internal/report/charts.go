package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"
)

const (
	chartWidth  = 1024
	chartHeight = 768
)

// Renderer writes election activity charts as SVG files.
type Renderer struct {
	dir    string
	logger *zap.Logger
}

func NewRenderer(dir string, logger *zap.Logger) *Renderer {
	return &Renderer{dir: dir, logger: logger}
}

// RenderAll writes the per-election charts plus the all-elections comparison.
func (r *Renderer) RenderAll(elections []*Election) error {
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}

	var failed int
	for _, e := range elections {
		if err := r.RenderElection(e); err != nil {
			r.logger.Error("rendering election charts",
				zap.String("site", e.Site), zap.Int("election", e.ID), zap.Error(err))
			failed++
		}
	}

	if len(elections) > 0 {
		if err := r.RenderComparison(elections); err != nil {
			r.logger.Error("rendering comparison chart", zap.Error(err))
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d charts failed to render", failed)
	}
	return nil
}

// RenderElection writes the three per-election charts: both series per hour,
// constituents per hour from their first appearance, and both cumulative.
func (r *Renderer) RenderElection(e *Election) error {
	name := fmt.Sprintf("%s-%d", e.Site, e.ID)

	err := r.renderLineChart(
		fmt.Sprintf("election-%s-both-per-hour.svg", name),
		fmt.Sprintf("Election %s Participation Per Hour", name),
		[]series{
			{name: "constituents", values: toFloats(e.ConstituentsByHour)},
			{name: "caucus", values: toFloats(e.CaucusByHour)},
		})
	if err != nil {
		return err
	}

	constituentTail := e.ConstituentsByHour
	if e.firstConstituentHour < len(constituentTail) {
		constituentTail = constituentTail[e.firstConstituentHour:]
	}
	err = r.renderLineChart(
		fmt.Sprintf("election-%s-constituents-per-hour.svg", name),
		fmt.Sprintf("Election %s Constituents Per Hour", name),
		[]series{
			{name: "constituents", values: toFloats(constituentTail)},
		})
	if err != nil {
		return err
	}

	return r.renderLineChart(
		fmt.Sprintf("election-%s-both-cumulative.svg", name),
		fmt.Sprintf("Election %s Participation", name),
		[]series{
			{name: "constituents", values: Cumulative(e.ConstituentsByHour)},
			{name: "caucus", values: Cumulative(e.CaucusByHour)},
		})
}

// RenderComparison writes one cumulative chart with every election's caucus
// and constituent series.
func (r *Renderer) RenderComparison(elections []*Election) error {
	var ss []series
	for _, e := range elections {
		ss = append(ss,
			series{name: fmt.Sprintf("%d caucus", e.ID), values: Cumulative(e.CaucusByHour)},
			series{name: fmt.Sprintf("%d constituents", e.ID), values: Cumulative(e.ConstituentsByHour)},
		)
	}

	site := elections[0].Site
	return r.renderLineChart(
		fmt.Sprintf("elections-%s-cumulative-all.svg", site),
		"Cumulative Election Participation",
		ss)
}

type series struct {
	name   string
	values []float64
}

func (r *Renderer) renderLineChart(filename, title string, ss []series) error {
	var chartSeries []chart.Series
	var maxValue float64
	for _, s := range ss {
		if len(s.values) < 2 {
			continue
		}
		for _, v := range s.values {
			if v > maxValue {
				maxValue = v
			}
		}
		chartSeries = append(chartSeries, chart.ContinuousSeries{
			Name:    s.name,
			XValues: hoursAxis(len(s.values)),
			YValues: s.values,
		})
	}
	// A zero value range cannot be charted.
	if len(chartSeries) == 0 || maxValue == 0 {
		r.logger.Debug("skipping chart with no plottable series", zap.String("file", filename))
		return nil
	}

	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis:  chart.XAxis{Name: "Hours"},
		YAxis:  chart.YAxis{Name: "Users"},
		Series: chartSeries,
	}
	graph.Elements = []chart.Renderable{chart.LegendThin(&graph)}

	path := filepath.Join(r.dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}

	err = graph.Render(chart.SVG, f)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("rendering %s: %w", filename, err)
	}

	r.logger.Info("wrote chart", zap.String("path", path))
	return nil
}

func toFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func hoursAxis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
