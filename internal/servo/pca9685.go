// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package servo

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gesture_arm/internal/arm"
	"github.com/relabs-tech/gesture_arm/internal/config"
)

// angleSetter is the part of *pca9685.Servo we drive.
type angleSetter interface {
	SetAngle(angle physic.Angle) error
}

// PCA9685 drives hobby servos through a PCA9685 16-channel PWM board.
type PCA9685 struct {
	bus    i2c.BusCloser
	chans  map[arm.JointID]Channel
	servos map[arm.JointID]angleSetter
}

// NewPCA9685 opens the I2C bus, sets the board to 50 Hz and binds one servo
// per configured joint. Pulse widths map 0..180° onto SERVO_MIN_PWM..SERVO_MAX_PWM
// (12-bit counts).
func NewPCA9685(cfg *config.Config) (*PCA9685, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("pca9685: periph host init: %w", err)
	}

	bus, err := i2creg.Open(cfg.PCA9685I2CBus)
	if err != nil {
		return nil, fmt.Errorf("pca9685: failed to open I2C bus %q: %w", cfg.PCA9685I2CBus, err)
	}

	dev, err := pca9685.NewI2C(bus, cfg.PCA9685I2CAddr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685: init at 0x%02X: %w", cfg.PCA9685I2CAddr, err)
	}
	if err := dev.SetPwmFreq(50 * physic.Hertz); err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685: set PWM frequency: %w", err)
	}
	log.Printf("pca9685: initialized at 0x%02X, 50 Hz", cfg.PCA9685I2CAddr)

	group := pca9685.NewServoGroup(dev,
		gpio.Duty(cfg.ServoMinPWM), gpio.Duty(cfg.ServoMaxPWM),
		0, 180*physic.Degree)

	channels := ChannelsFrom(cfg)
	servos := make(map[arm.JointID]angleSetter, len(channels))
	for _, ch := range channels {
		servos[ch.Joint] = group.GetServo(ch.Channel)
		log.Printf("pca9685: %s on channel %d, range [%d,%d]°", ch.Joint, ch.Channel, ch.Min, ch.Max)
	}

	return &PCA9685{bus: bus, chans: index(channels), servos: servos}, nil
}

// SetAngle writes one servo. Out-of-range requests are rejected, never clamped.
func (p *PCA9685) SetAngle(joint arm.JointID, degrees int) error {
	if _, err := check(p.chans, joint, degrees); err != nil {
		return err
	}
	if err := p.servos[joint].SetAngle(physic.Angle(degrees) * physic.Degree); err != nil {
		return fmt.Errorf("pca9685: %s -> %d°: %w", joint, degrees, err)
	}
	return nil
}

// Close releases the I2C bus. Servos keep their last pulse width.
func (p *PCA9685) Close() error {
	if p.bus == nil {
		return nil
	}
	return p.bus.Close()
}
