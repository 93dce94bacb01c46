package middleware

import (
	"strconv"

	"localpulse/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware continues any incoming trace and wraps the request in a
// server span. When a trace is recording, its id is exposed through the
// traceID local and the X-Trace-ID response header.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("net.peer.ip", c.IP()),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			id := sc.TraceID().String()
			c.Locals("traceID", id)
			c.Set("X-Trace-ID", id)
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()
		annotate(c, span, err)
		return err
	}
}

// annotate records what is only known after the handler ran.
func annotate(c *fiber.Ctx, span trace.Span, err error) {
	if route := c.Route(); route != nil && route.Path != "" {
		span.SetName(c.Method() + " " + route.Path)
		span.SetAttributes(attribute.String("http.route", route.Path))
	}
	if uid, ok := c.Locals("userID").(uint); ok {
		span.SetAttributes(attribute.Int64("user.id", int64(uid)))
	}

	status := c.Response().StatusCode()
	span.SetAttributes(attribute.Int("http.status_code", status))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= fiber.StatusInternalServerError:
		span.SetStatus(codes.Error, "status "+strconv.Itoa(status))
	}
}
