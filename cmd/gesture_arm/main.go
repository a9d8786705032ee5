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
	dryRun := flag.Bool("dry-run", false, "use the mock sensor and log servo commands instead of driving hardware")
	flag.Parse()

	log.Println("starting gesture-arm controller (IMU → gesture → servos)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGestureArm(ctx, config.Get(), *dryRun); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
