// Package report renders diagnostic plots of pipeline inputs.
package report

import (
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/prepkit/dataset"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// DefaultBins is the number of histogram bins.
const DefaultBins = 40

// TargetHistogram writes a normalised histogram of values with the normal
// density of the same mean and standard deviation overlaid. The image
// format follows the extension of path (png, svg, pdf, ...).
func TargetHistogram(path, title string, values []float64) error {
	if len(values) == 0 {
		return errors.NewModelError("report.TargetHistogram", "empty data", errors.ErrEmptyData)
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		return errors.NewValidationError("target_plot", "file name needs an image extension", path)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "value"
	p.Y.Label.Text = "density"

	hist, err := plotter.NewHist(plotter.Values(values), DefaultBins)
	if err != nil {
		return errors.Wrap(err, "report: histogram")
	}
	hist.Normalize(1)
	p.Add(hist)

	mean, std := stat.MeanStdDev(values, nil)
	if std > 0 {
		normal := distuv.Normal{Mu: mean, Sigma: std}
		fn := plotter.NewFunction(normal.Prob)
		fn.Width = vg.Points(2)
		p.Add(fn)
		p.Legend.Add("normal fit", fn)
	}

	w, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return errors.NewValidationError("target_plot", err.Error(), path)
	}

	return dataset.WriteFileAtomic(path, func(out io.Writer) error {
		_, err := w.WriteTo(out)
		return err
	})
}
