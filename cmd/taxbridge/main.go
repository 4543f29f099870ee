package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxbridge/internal/avalara"
	"github.com/smallbiznis/taxbridge/internal/clock"
	"github.com/smallbiznis/taxbridge/internal/config"
	"github.com/smallbiznis/taxbridge/internal/migration"
	"github.com/smallbiznis/taxbridge/internal/observability"
	"github.com/smallbiznis/taxbridge/internal/server"
	"github.com/smallbiznis/taxbridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	fx.New(options()).Run()
}

func options() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		avalara.Module,
		server.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
