package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/internal/application"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	"github.com/smallbiznis/turfkeeper/internal/config"
	"github.com/smallbiznis/turfkeeper/internal/gdd"
	"github.com/smallbiznis/turfkeeper/internal/lawn"
	"github.com/smallbiznis/turfkeeper/internal/location"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	"github.com/smallbiznis/turfkeeper/internal/migration"
	"github.com/smallbiznis/turfkeeper/internal/observability"
	"github.com/smallbiznis/turfkeeper/internal/ratelimit"
	"github.com/smallbiznis/turfkeeper/internal/server"
	"github.com/smallbiznis/turfkeeper/internal/task"
	"github.com/smallbiznis/turfkeeper/internal/weather"
	"github.com/smallbiznis/turfkeeper/pkg/db"
	"go.uber.org/fx"
)

// APP_ROLE picks what this process runs: "api", "worker" or "all".
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		location.Module,
		lawn.Module,
		weather.Module,
		gdd.Module,
		application.Module,
		task.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
