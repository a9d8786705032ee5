// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/imu"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// rawReader is the subset of *mpu9250.MPU9250 the source needs.
type rawReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
	GetRotationX() (int16, error)
	GetRotationY() (int16, error)
	GetRotationZ() (int16, error)
}

var _ rawReader = (*mpu9250.MPU9250)(nil)

type imuSource struct {
	name       string
	dev        rawReader
	accelRange byte
	gyroRange  byte
}

// NewIMUSource initializes the MPU9250 over SPI using the configured device and CS pin.
func NewIMUSource(cfg *config.Config) (imu.Source, error) {
	const name = "mpu9250"

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("%s: CS pin %q not found", name, cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("%s: SPI transport (%s): %w", name, cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s: initialization: %w", name, err)
	}

	// Calibration only trims offsets; a failure leaves a usable but biased sensor.
	if err := dev.Calibrate(); err != nil {
		log.Printf("sensors: %s calibration failed, continuing uncalibrated: %v", name, err)
	} else {
		log.Printf("sensors: %s calibration complete", name)
	}

	log.Printf("sensors: %s ranges accel=±%dg gyro=±%d°/s", name,
		[]int{2, 4, 8, 16}[cfg.IMUAccelRange], []int{250, 500, 1000, 2000}[cfg.IMUGyroRange])

	return newIMUSource(name, dev, cfg.IMUAccelRange, cfg.IMUGyroRange), nil
}

func newIMUSource(name string, dev rawReader, accelRange, gyroRange byte) *imuSource {
	return &imuSource{name: name, dev: dev, accelRange: accelRange, gyroRange: gyroRange}
}

// ReadSample reads accelerometer and gyroscope registers and scales them to
// m/s² and °/s. Any register failure is a SensorError.
func (s *imuSource) ReadSample() (imu.Sample, error) {
	raw, err := s.readRaw()
	if err != nil {
		return imu.Sample{}, &imu.SensorError{Source: s.name, Err: err}
	}
	return raw.Scale(s.accelRange, s.gyroRange), nil
}

func (s *imuSource) readRaw() (imu.IMURaw, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("accel X: %w", err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("accel Y: %w", err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("accel Z: %w", err)
	}

	gx, err := s.dev.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("gyro X: %w", err)
	}
	gy, err := s.dev.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("gyro Y: %w", err)
	}
	gz, err := s.dev.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("gyro Z: %w", err)
	}

	return imu.IMURaw{Ax: ax, Ay: ay, Az: az, Gx: gx, Gy: gy, Gz: gz}, nil
}
