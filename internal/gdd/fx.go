package gdd

import (
	"github.com/smallbiznis/turfkeeper/internal/gdd/repository"
	"github.com/smallbiznis/turfkeeper/internal/gdd/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gdd.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewEngine),
	fx.Provide(service.NewResetLedger),
)
