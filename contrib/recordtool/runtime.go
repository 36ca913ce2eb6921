package recordtool

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/surrealdb/recordcodec"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/logger"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/recordstore"
	"github.com/surrealdb/recordcodec/pkg/schema"
	"github.com/surrealdb/recordcodec/pkg/textcodec"
)

// runtime holds what a command needs once the config is settled.
type runtime struct {
	config  *Config
	logData *logger.LogData
	log     logger.Logger
	opts    []codecctx.Option
	ctx     *codecctx.Context

	basic    *metrics.Basic
	registry *prometheus.Registry
	codec    *recordcodec.Codec
}

func newRuntime(config *Config, stderr io.Writer) (*runtime, error) {
	logData, err := logger.New().FromBuffer(stderr).FromPath(config.LogFile).Level(config.LogLevel).Make()
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	rt := &runtime{config: config, logData: logData, log: logData.Leveled()}
	rt.opts = append(rt.opts, codecctx.WithLogger(rt.log))

	if config.SchemaFile != "" {
		registry, err := schema.LoadFile(config.SchemaFile)
		if err != nil {
			_ = logData.Close()
			return nil, err
		}
		rt.opts = append(rt.opts, codecctx.WithSchema(registry))
		rt.log.Debug("schema loaded", "file", config.SchemaFile, "classes", len(registry.Classes()))
	}

	switch config.Metrics {
	case MetricsBasic:
		rt.basic = metrics.NewBasic()
		rt.opts = append(rt.opts, codecctx.WithMetrics(rt.basic))
	case MetricsPrometheus:
		rt.registry = prometheus.NewRegistry()
		sink, err := metrics.NewPrometheus(rt.registry, "recordtool")
		if err != nil {
			_ = logData.Close()
			return nil, err
		}
		rt.opts = append(rt.opts, codecctx.WithMetrics(sink))
	}

	rt.ctx = codecctx.New(rt.opts...)
	return rt, nil
}

func (rt *runtime) encodeOptions() textcodec.Options {
	return textcodec.Options{OverAllocation: rt.config.PadOverAllocation}
}

// store opens the record store in the data directory on first use.
func (rt *runtime) store() (*recordcodec.Codec, error) {
	if rt.codec != nil {
		return rt.codec, nil
	}
	store, err := recordstore.OpenPebble(rt.config.DataDir)
	if err != nil {
		return nil, err
	}
	rt.codec = recordcodec.New(store, rt.opts...)
	return rt.codec, nil
}

// close reports the collected metrics, then releases the store and the log.
func (rt *runtime) close() error {
	if rt.basic != nil {
		for _, s := range rt.basic.Snapshot() {
			rt.log.Info("operation stats", "op", s.Op, "count", s.Count, "errors", s.Errors, "average", s.Average())
		}
	}
	if rt.registry != nil {
		families, err := rt.registry.Gather()
		if err != nil {
			rt.log.Warn("failed to gather metrics", "error", err)
		}
		for _, family := range families {
			rt.log.Info("metric family", "name", family.GetName(), "series", len(family.GetMetric()))
		}
	}

	var errs []error
	if rt.codec != nil {
		errs = append(errs, rt.codec.Close())
	}
	errs = append(errs, rt.logData.Close())
	return errors.Join(errs...)
}
