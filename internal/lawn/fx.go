package lawn

import (
	"github.com/smallbiznis/turfkeeper/internal/lawn/repository"
	"github.com/smallbiznis/turfkeeper/internal/lawn/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lawn.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
