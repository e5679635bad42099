package api

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tfcache/internal/tf"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
)

var errNoSamples = errors.New("no samples to plot")

var axisColors = []color.Color{
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, // x
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}, // y
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, // z
}

// AttachAdminRoutes mounts the translation history chart on the debug pages.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("plot", s.plotHistory)
}

// plotHistory renders ?parent=&child= translation history as a PNG. Pairs no
// longer in the buffer are read back from the store when one is attached.
func (s *Server) plotHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pair := tfbuffer.Pair{Parent: r.URL.Query().Get("parent"), Child: r.URL.Query().Get("child")}
	if pair.Parent == "" || pair.Child == "" {
		http.Error(w, "parent and child are required", http.StatusBadRequest)
		return
	}

	samples, err := s.buf.History(pair)
	if errors.Is(err, tfbuffer.ErrUnknownFramePair) && s.store != nil {
		samples, err = s.store.Samples(pair, tf.Stamp{}, tf.Stamp{})
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var png bytes.Buffer
	if err := renderTranslationPlot(&png, pair, samples); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errNoSamples) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	png.WriteTo(w)
}

// renderTranslationPlot draws x, y and z against time since the first sample.
func renderTranslationPlot(w io.Writer, pair tfbuffer.Pair, samples []tf.Stamped) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w for %s", errNoSamples, pair)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s translation", pair)
	p.X.Label.Text = fmt.Sprintf("Time since %s (s)", samples[0].Stamp)
	p.Y.Label.Text = "Translation (m)"

	start := samples[0].Stamp
	series := [3]plotter.XYs{}
	for i := range series {
		series[i] = make(plotter.XYs, 0, len(samples))
	}
	for _, s := range samples {
		t := s.Stamp.Sub(start).Seconds()
		v := s.Transform.Translation
		series[0] = append(series[0], plotter.XY{X: t, Y: v.X})
		series[1] = append(series[1], plotter.XY{X: t, Y: v.Y})
		series[2] = append(series[2], plotter.XY{X: t, Y: v.Z})
	}

	for i, label := range []string{"x", "y", "z"} {
		line, err := plotter.NewLine(series[i])
		if err != nil {
			return err
		}
		line.Color = axisColors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(label, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
