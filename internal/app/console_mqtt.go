// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/telemetry"
)

// RunConsoleMQTT prints every cycle record published by the controller until
// ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicCycle, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec telemetry.CycleRecord
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("console: cycle unmarshal error: %v", err)
			return
		}
		printCycle(os.Stdout, rec)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicCycle)

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

// printCycle writes one line per record, e.g.
//
//	[#12 up   ] near=110+ far=70+ base=90 (41.2ms)
//
// where * marks a joint at its limit and + a joint that moved.
func printCycle(w io.Writer, rec telemetry.CycleRecord) {
	if rec.Error != "" {
		fmt.Fprintf(w, "[#%d %-5s] %s error: %s\n", rec.Seq, "--", rec.ErrorKind, rec.Error)
		return
	}

	var b strings.Builder
	for _, j := range rec.Joints {
		mark := ""
		switch {
		case j.Moved:
			mark = "+"
		case j.AtLimit:
			mark = "*"
		}
		fmt.Fprintf(&b, " %s=%d%s", j.Joint, j.Angle, mark)
	}

	status := ""
	if rec.LimitReached {
		status = " LIMIT"
	} else if !rec.Recognized {
		status = " no movement"
	}
	fmt.Fprintf(w, "[#%d %-5s]%s%s (%.1fms)\n", rec.Seq, rec.Label, b.String(), status, rec.DurationMS)
}
