package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/trackhub/backend-go/app/bootstrap"
	"github.com/trackhub/backend-go/internal/config"
	"github.com/trackhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	web.BConfig.AppName = "TrackHub Backend"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("starting server", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
