package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *authsvc.Engine.
type MetricsSource interface {
	MetricsSnapshot() authsvc.MetricsSnapshot
}

type counterInstrument struct {
	id  authsvc.MetricID
	ins metric.Int64ObservableCounter
}

type histogramInstruments struct {
	id      authsvc.MetricID
	buckets metric.Int64ObservableCounter
	count   metric.Int64ObservableCounter
	sum     metric.Float64ObservableCounter
}

// OTelExporter publishes engine metrics as observable instruments on a
// caller-supplied meter.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []counterInstrument
	histograms   []histogramInstruments
	leOptions    []metric.ObserveOption
}

// NewOTelExporter creates the instruments and registers one callback that
// takes a single snapshot per collection.
func NewOTelExporter(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	for i := 0; i <= len(internaldefs.BucketBounds); i++ {
		e.leOptions = append(e.leOptions, metric.WithAttributeSet(attribute.NewSet(
			attribute.String("le", internaldefs.LeLabel(i)),
		)))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := histogramInstruments{id: def.ID}
		var err error
		if h.buckets, err = meter.Int64ObservableCounter(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound.")); err != nil {
			return nil, fmt.Errorf("create %s_bucket: %w", def.Name, err)
		}
		if h.count, err = meter.Int64ObservableCounter(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count.")); err != nil {
			return nil, fmt.Errorf("create %s_count: %w", def.Name, err)
		}
		if h.sum, err = meter.Float64ObservableCounter(def.Name+"_sum",
			metric.WithDescription(def.Help+" Sum of samples."), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("create %s_sum: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, h.buckets, h.count, h.sum)
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	if len(snap.Counters) > 0 {
		for _, c := range e.counters {
			o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
		}
	}
	for _, h := range e.histograms {
		hs, ok := snap.Histograms[h.id]
		if !ok {
			continue
		}
		for i, v := range hs.Cumulative() {
			if i < len(e.leOptions) {
				o.ObserveInt64(h.buckets, int64(v), e.leOptions[i])
			}
		}
		o.ObserveInt64(h.count, int64(hs.Count))
		o.ObserveFloat64(h.sum, hs.Sum.Seconds())
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
