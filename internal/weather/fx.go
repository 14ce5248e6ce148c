package weather

import (
	"github.com/smallbiznis/turfkeeper/internal/weather/repository"
	"github.com/smallbiznis/turfkeeper/internal/weather/service"
	"go.uber.org/fx"
)

var Module = fx.Module("weather.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
