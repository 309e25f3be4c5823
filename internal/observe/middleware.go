package observe

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Middleware returns a fiber handler that wraps each request in a server
// span and records its duration. Paths are recorded by route pattern so
// session and face IDs do not explode label cardinality.
func Middleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		ctx, span := StartSpan(c.UserContext(), "HTTP "+c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		span.SetAttributes(
			attribute.String("http.route", path),
			attribute.Int("http.status_code", status),
		)

		m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(
				attribute.String("method", c.Method()),
				attribute.String("path", path),
				attribute.String("status", strconv.Itoa(status)),
			),
		)
		return err
	}
}
