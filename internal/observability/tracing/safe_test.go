package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsBlockedKeysAndTruncates(t *testing.T) {
	long := strings.Repeat("x", maxAttributeLength+10)
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/gdd-models/:id"),
		attribute.String("http.request.body", "secret"),
		attribute.String("note", long),
		attribute.Int("http.status_code", 200),
	)

	assert.Len(t, attrs, 3)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
	assert.Len(t, attrs[1].Value.AsString(), maxAttributeLength)
	assert.Equal(t, int64(200), attrs[2].Value.AsInt64())
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	err := SafeError(errors.New(strings.Repeat("e", maxAttributeLength*2)))
	assert.Len(t, err.Error(), maxAttributeLength)
}

func TestRouteResource(t *testing.T) {
	key, id := routeResource("/api/gdd-models/:id/values", "42")
	assert.Equal(t, "gdd.model_id", key)
	assert.Equal(t, "42", id)

	key, _ = routeResource("/api/locations/:id/weather", "7")
	assert.Equal(t, "turf.location_id", key)

	key, _ = routeResource("/api/gdd-models", "")
	assert.Empty(t, key)

	key, _ = routeResource("/health", "1")
	assert.Empty(t, key)
}
