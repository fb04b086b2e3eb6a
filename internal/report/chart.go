package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"coverga/internal/model"
)

// WriteChart renders a self-contained HTML line chart of the population's
// best, mean and worst fitness per generation, plus the best-so-far cost.
func WriteChart(w io.Writer, run model.RunRecord, diagnostics []model.GenerationDiagnostics) error {
	if len(diagnostics) == 0 {
		return errors.New("no generation diagnostics to chart")
	}

	xAxis := make([]string, 0, len(diagnostics))
	best := make([]opts.LineData, 0, len(diagnostics))
	mean := make([]opts.LineData, 0, len(diagnostics))
	worst := make([]opts.LineData, 0, len(diagnostics))
	bestSoFar := make([]opts.LineData, 0, len(diagnostics))
	running := diagnostics[0].BestFitness
	for _, d := range diagnostics {
		xAxis = append(xAxis, strconv.Itoa(d.Generation))
		best = append(best, opts.LineData{Value: Round2(d.BestFitness)})
		mean = append(mean, opts.LineData{Value: Round2(d.MeanFitness)})
		worst = append(worst, opts.LineData{Value: Round2(d.WorstFitness)})
		if d.BestFitness < running {
			running = d.BestFitness
		}
		bestSoFar = append(bestSoFar, opts.LineData{Value: Round2(running)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "coverga run " + run.ID, Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Convergence",
			Subtitle: fmt.Sprintf("run=%s clients=%d facilities=%d status=%s", run.ID, run.Clients, run.Facilities, run.Status),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "generation", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cost", Type: "log"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("best so far", bestSoFar).
		AddSeries("generation best", best).
		AddSeries("mean", mean).
		AddSeries("worst", worst)
	return line.Render(w)
}
