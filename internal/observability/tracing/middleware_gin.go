package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/turfkeeper/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// resourceAttributes maps a route prefix to the span attribute naming its :id.
var resourceAttributes = []struct {
	prefix string
	key    string
}{
	{"/api/gdd-models/", "gdd.model_id"},
	{"/api/locations/", "turf.location_id"},
	{"/api/lawns/", "turf.lawn_id"},
	{"/api/applications/", "turf.application_id"},
	{"/api/tasks/", "task.id"},
}

// GinMiddleware opens a server span per request, tagged with the id of the
// resource the route addresses.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("turfkeeper/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		ctx = withRequestBaggage(ctx, span)

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		if key, id := routeResource(route, c.Param("id")); key != "" {
			span.SetAttributes(attribute.String(key, id))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		span.SetName("HTTP " + c.Request.Method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

func withRequestBaggage(ctx context.Context, span trace.Span) context.Context {
	requestID := obscontext.RequestIDFromContext(ctx)
	if requestID == "" {
		return ctx
	}
	span.SetAttributes(attribute.String("request_id", requestID))

	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// routeResource returns the attribute key and id for routes shaped like
// /api/<resource>/:id[/...]; an empty key means the route names no resource.
func routeResource(route, id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ""
	}
	for _, r := range resourceAttributes {
		if strings.HasPrefix(route, r.prefix+":id") {
			return r.key, id
		}
	}
	return "", ""
}
