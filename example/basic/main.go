package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	vision "github.com/rtorresf4/vision-iot-pi5"
)

func main() {
	cfg, err := vision.LoadConfig("../../config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := vision.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("detector exited: %v", err)
	}
}
