package main

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	vision "github.com/rtorresf4/vision-iot-pi5"
)

// Runs the whole pipeline against a synthetic camera and prints every message
// instead of publishing it, so the data flow can be inspected without a
// broker, a camera, or a model.
func main() {
	cfg := &vision.Config{}
	cfg.Video.Synthetic = true
	cfg.Video.FPS = 5
	cfg.Broker.Endpoint = "tcp://unused:1883"
	cfg.ApplyDefaults()

	rt, err := vision.NewRuntime(cfg, vision.WithPublisher(&stdoutPublisher{}))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("detector exited: %v", err)
	}
}

type stdoutPublisher struct {
	sent atomic.Uint64
}

func (p *stdoutPublisher) Start() error { return nil }

func (p *stdoutPublisher) Publish(msg vision.OutboundMessage) {
	p.sent.Add(1)
	fmt.Printf("[%s] %s\n", msg.Topic, msg.Payload)
}

func (p *stdoutPublisher) Stats() vision.BusStats {
	return vision.BusStats{Sent: p.sent.Load(), Connected: true}
}

func (p *stdoutPublisher) Shutdown(context.Context) error { return nil }
