package observability

import (
	"testing"

	"github.com/smallbiznis/turfkeeper/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestServiceNameForRole(t *testing.T) {
	assert.Equal(t, "turfkeeper", serviceNameForRole("", config.RoleAll))
	assert.Equal(t, "turfkeeper", serviceNameForRole("turfkeeper", ""))
	assert.Equal(t, "turfkeeper-worker", serviceNameForRole("turfkeeper", config.RoleWorker))
	assert.Equal(t, "lawns-api", serviceNameForRole(" lawns ", config.RoleAPI))
}

func TestLoadConfig_SamplingFollowsEnvironment(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("DEPLOYMENT_ENV", "")

	dev := LoadConfig(config.Config{AppName: "turfkeeper", Role: config.RoleAll, Environment: "development"})
	assert.Equal(t, 1.0, dev.OtelSamplingRatio)
	assert.True(t, dev.Debug())

	prod := LoadConfig(config.Config{AppName: "turfkeeper", Role: config.RoleWorker, Environment: "production"})
	assert.Equal(t, 0.1, prod.OtelSamplingRatio)
	assert.Equal(t, "turfkeeper-worker", prod.ServiceName)
}
