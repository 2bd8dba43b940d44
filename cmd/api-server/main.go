package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	boutique "github.com/pasheon/boutique-backend/internal/app"
)

func main() {
	app.Run(serve)
}

func serve(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
	cfg, err := boutique.LoadConfig()
	if err != nil {
		return err
	}
	return boutique.Run(ctx, lg, m, cfg)
}
