// Package codecctx carries the collaborators every codec call needs: the
// schema lookup, the metrics sink, the logger and the identity resolver.
//
// A Context is immutable once built and may be shared by any number of
// goroutines.
package codecctx

import (
	"time"

	"github.com/surrealdb/recordcodec/pkg/logger"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/schema"
)

type Context struct {
	schema     schema.Lookup
	metrics    metrics.Sink
	logger     logger.Logger
	identities models.IdentityResolver
}

type Option func(*Context)

// WithSchema sets the schema consulted during type resolution.
func WithSchema(s schema.Lookup) Option {
	return func(c *Context) { c.schema = s }
}

func WithMetrics(m metrics.Sink) Option {
	return func(c *Context) { c.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithIdentities sets the resolver used to replace pending record ids
// while encoding.
func WithIdentities(r models.IdentityResolver) Option {
	return func(c *Context) { c.identities = r }
}

// New builds a Context. Without options it has no schema, discards logs
// and metrics, and resolves no identities.
func New(opts ...Option) *Context {
	c := &Context{
		metrics: metrics.Noop{},
		logger:  logger.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default is the schemaless context.
var Default = New()

// Property looks up the declaration of field in class.
func (c *Context) Property(class, field string) (schema.Property, bool) {
	if c == nil || c.schema == nil {
		return schema.Property{}, false
	}
	return c.schema.Property(class, field)
}

// OverSize returns the over-allocation factor of class.
func (c *Context) OverSize(class string) float64 {
	if c == nil || c.schema == nil || class == "" {
		return 0
	}
	return c.schema.OverSize(class)
}

func (c *Context) Logger() logger.Logger {
	if c == nil || c.logger == nil {
		return logger.Discard
	}
	return c.logger
}

func (c *Context) Metrics() metrics.Sink {
	if c == nil || c.metrics == nil {
		return metrics.Noop{}
	}
	return c.metrics
}

// ResolveIdentity maps a pending id to its persisted identity, if known.
func (c *Context) ResolveIdentity(rid models.RecordID) (models.RecordID, bool) {
	if c == nil || c.identities == nil || !rid.IsPending() {
		return rid, false
	}
	return c.identities.ResolveIdentity(rid)
}

// Observe reports the outcome of op started at start.
func (c *Context) Observe(op string, start time.Time, err error) {
	metrics.Since(c.Metrics(), op, start, &err)
}
