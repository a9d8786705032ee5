// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/telemetry"
)

// DisplayData holds the latest arm status for the OLED.
type DisplayData struct {
	mu sync.RWMutex

	joints     []telemetry.JointRecord
	haveJoints bool

	cycle     telemetry.CycleRecord
	haveCycle bool
}

type displaySnapshot struct {
	joints     []telemetry.JointRecord
	haveJoints bool
	cycle      telemetry.CycleRecord
	haveCycle  bool
}

func (d *DisplayData) setJoints(joints []telemetry.JointRecord) {
	d.mu.Lock()
	d.joints = joints
	d.haveJoints = true
	d.mu.Unlock()
}

func (d *DisplayData) setCycle(rec telemetry.CycleRecord) {
	d.mu.Lock()
	d.cycle = rec
	d.haveCycle = true
	if len(rec.Joints) > 0 {
		d.joints = rec.Joints
		d.haveJoints = true
	}
	d.mu.Unlock()
}

func (d *DisplayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		joints:     append([]telemetry.JointRecord(nil), d.joints...),
		haveJoints: d.haveJoints,
		cycle:      d.cycle,
		haveCycle:  d.haveCycle,
	}
}

// RunDisplay shows the last gesture and the joint angles on an SSD1306 until
// ctx is cancelled.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// The upstream driver always talks to 0x3C.
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized at 0x3C")

	if err := dev.Draw(dev.Bounds(), renderLines("Gesture Arm", "", "Waiting..."), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// Retained, so the pose is known before the first gesture.
	token := client.Subscribe(cfg.TopicArmState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var joints []telemetry.JointRecord
		if err := json.Unmarshal(msg.Payload(), &joints); err != nil {
			log.Printf("display: arm state unmarshal error: %v", err)
			return
		}
		data.setJoints(joints)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicArmState)

	token = client.Subscribe(cfg.TopicCycle, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec telemetry.CycleRecord
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("display: cycle unmarshal error: %v", err)
			return
		}
		data.setCycle(rec)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicCycle)

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			dev.Draw(dev.Bounds(), renderLines("Gesture Arm", "", "Stopped"), image.Point{})
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), renderArm(data.snapshot()), image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

// armLines is the text shown for one snapshot, at most four lines.
func armLines(s displaySnapshot) []string {
	if !s.haveJoints && !s.haveCycle {
		return []string{"Gesture Arm", "", "Waiting..."}
	}

	head := "G: --"
	if s.haveCycle {
		switch {
		case s.cycle.Error != "":
			head = "ERR: " + s.cycle.ErrorKind
		case s.cycle.LimitReached:
			head = fmt.Sprintf("G: %s LIMIT", s.cycle.Label)
		default:
			head = "G: " + s.cycle.Label
		}
	}

	lines := []string{head}
	for _, j := range s.joints {
		mark := ""
		if j.AtLimit {
			mark = " *"
		}
		lines = append(lines, fmt.Sprintf("%-5s %4d%s", j.Joint, j.Angle, mark))
	}
	if len(lines) > 4 {
		lines = lines[:4]
	}
	return lines
}

func renderArm(s displaySnapshot) *image1bit.VerticalLSB {
	return renderLines(armLines(s)...)
}

// renderLines draws up to four lines of 7x13 text on a 128x64 frame.
func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1)+2)
		drawer.DrawString(line)
	}
	return img
}
