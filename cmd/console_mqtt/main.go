// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/gesture_arm/internal/app"
	"github.com/relabs-tech/gesture_arm/internal/config"
)

func main() {
	configPath := flag.String("config", "./gesture_arm_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting gesture-arm console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, config.Get()); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
