// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/gesture_arm/internal/config"
	"github.com/relabs-tech/gesture_arm/internal/imu"
)

// SerialSource reads samples from a microcontroller that streams one
// "ax,ay,az,gx,gy,gz" line per reading, already in m/s² and °/s.
type SerialSource struct {
	name   string
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

// NewSerialSource opens the configured serial port.
func NewSerialSource(cfg *config.Config) (*SerialSource, error) {
	serialOpts := serial.OpenOptions{
		PortName:              cfg.IMUSerialPort,
		BaudRate:              uint(cfg.IMUBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("serial IMU: open %s: %w", cfg.IMUSerialPort, err)
	}
	log.Printf("sensors: serial IMU opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	return newSerialSource(cfg.IMUSerialPort, port), nil
}

func newSerialSource(name string, port io.ReadWriteCloser) *SerialSource {
	return &SerialSource{name: name, port: port, reader: bufio.NewReader(port)}
}

// ReadSample blocks until the next complete line. Blank lines and "#" banner
// lines from the bridge firmware are skipped; anything else that doesn't parse
// is a SensorError.
func (s *SerialSource) ReadSample() (imu.Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
				return imu.Sample{}, &imu.SensorError{Source: s.name, Err: io.ErrUnexpectedEOF}
			}
			if !errors.Is(err, io.EOF) {
				return imu.Sample{}, &imu.SensorError{Source: s.name, Err: err}
			}
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sample, err := ParseSampleLine(line)
		if err != nil {
			return imu.Sample{}, &imu.SensorError{Source: s.name, Err: err}
		}
		return sample, nil
	}
}

// Close releases the serial port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}

// ParseSampleLine parses "ax,ay,az,gx,gy,gz".
func ParseSampleLine(line string) (imu.Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != imu.Axes {
		return imu.Sample{}, fmt.Errorf("expected %d fields, got %d in %q", imu.Axes, len(fields), line)
	}

	var s imu.Sample
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return imu.Sample{}, fmt.Errorf("field %s: %w", imu.AxisNames[i], err)
		}
		s[i] = v
	}
	if err := s.Validate(); err != nil {
		return imu.Sample{}, err
	}
	return s, nil
}
