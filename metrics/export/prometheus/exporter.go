package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// MetricsSource is satisfied by *authsvc.Engine.
type MetricsSource interface {
	MetricsSnapshot() authsvc.MetricsSnapshot
}

// PrometheusExporter renders engine metrics in the Prometheus text
// exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter reading from source, usually the
// engine.
func NewPrometheusExporter(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves one snapshot per scrape.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		bw := bufio.NewWriter(w)
		p.Encode(bw)
		_ = bw.Flush()
	})
}

// Render returns the exposition text. It is empty when metrics are disabled.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	p.Encode(&b)
	return b.String()
}

// Encode writes the exposition text for one snapshot to w.
func (p *PrometheusExporter) Encode(w io.Writer) {
	if p == nil || p.source == nil {
		return
	}
	snap := p.source.MetricsSnapshot()

	if len(snap.Counters) > 0 {
		for _, def := range internaldefs.CounterDefs {
			writeHeader(w, def, "counter")
			fmt.Fprintf(w, "%s %d\n", def.Name, snap.Counters[def.ID])
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		h, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHeader(w, def, "histogram")
		for i, v := range h.Cumulative() {
			fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", def.Name, internaldefs.LeLabel(i), v)
		}
		fmt.Fprintf(w, "%s_sum %s\n", def.Name, strconv.FormatFloat(h.Sum.Seconds(), 'g', -1, 64))
		fmt.Fprintf(w, "%s_count %d\n", def.Name, h.Count)
	}
}

func writeHeader(w io.Writer, def internaldefs.Def, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n", def.Name, escapeHelp(def.Help))
	fmt.Fprintf(w, "# TYPE %s %s\n", def.Name, kind)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
