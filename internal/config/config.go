// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDController string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string
	MQTTClientIDDisplay    string

	// Topics
	TopicCycle    string
	TopicArmState string

	// Sensor: "mpu9250", "serial" or "mock"
	SensorSource  string
	IMUSPIDevice  string
	IMUCSPin      string
	IMUSerialPort string
	IMUBaudRate   int
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Sampling
	WindowSize         int
	SampleIntervalMS   int
	PipelineQueueDepth int // 0 runs the loop sequentially
	ClassifyBudgetMS   int

	// Classifier
	ModelPath string

	// Actuation
	StepDegrees       int
	SmoothingSubSteps int
	SmoothingDelayMS  int
	Actuator          string // "pca9685" or "log"
	PCA9685I2CBus     string
	PCA9685I2CAddr    uint16
	ServoMinPWM       int
	ServoMaxPWM       int

	JointNear Joint
	JointFar  Joint
	JointBase Joint

	// History
	RedisAddr       string
	RedisHistoryKey string
	RedisHistoryLen int

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Joint is the per-servo configuration block (JOINT_<NAME>_*).
type Joint struct {
	Channel int
	Min     int
	Max     int
	Init    int
	// UpDirection is +1 or -1; only meaningful for the vertical joints.
	UpDirection int
}

// Package-level singleton, guarded the same way for every binary:
// InitGlobal sets it once, Get reads it under a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with the values the arm was first tuned with:
// 40 samples at 50 ms, 20° steps, every joint parked at 90°.
func Default() *Config {
	return &Config{
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDController: "gesture-arm-controller",
		MQTTClientIDConsole:    "gesture-arm-console",
		MQTTClientIDWeb:        "gesture-arm-web",
		MQTTClientIDDisplay:    "gesture-arm-display",
		TopicCycle:             "gesture_arm/cycle",
		TopicArmState:          "gesture_arm/state",

		SensorSource:  "mpu9250",
		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "8",
		IMUSerialPort: "/dev/ttyUSB0",
		IMUBaudRate:   115200,

		WindowSize:         40,
		SampleIntervalMS:   50,
		PipelineQueueDepth: 0,
		ClassifyBudgetMS:   200,

		ModelPath: "model.yaml",

		StepDegrees:       20,
		SmoothingSubSteps: 1,
		SmoothingDelayMS:  15,
		Actuator:          "pca9685",
		PCA9685I2CBus:     "",
		PCA9685I2CAddr:    0x40,
		ServoMinPWM:       102,
		ServoMaxPWM:       512,

		JointNear: Joint{Channel: 0, Min: 0, Max: 180, Init: 90, UpDirection: 1},
		JointFar:  Joint{Channel: 1, Min: 0, Max: 180, Init: 90, UpDirection: -1},
		JointBase: Joint{Channel: 2, Min: 20, Max: 160, Init: 90},

		RedisHistoryKey: "gesture_arm:history",
		RedisHistoryLen: 500,

		WebServerPort: 8080,

		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file on top of Default and validates the result.
// Every validation failure is a *ConfigError.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, &ConfigError{Reason: "failed to open config file", Err: err}
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, &ConfigError{Reason: fmt.Sprintf("invalid config line %d: %q", lineNum, line)}
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, &ConfigError{Key: key, Reason: fmt.Sprintf("line %d", lineNum), Err: err}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Reason: "error reading config file", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROLLER":
		c.MQTTClientIDController = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_CYCLE":
		c.TopicCycle = value
	case "TOPIC_ARM_STATE":
		c.TopicArmState = value

	// Sensor
	case "SENSOR_SOURCE":
		switch value {
		case "mpu9250", "serial", "mock":
			c.SensorSource = value
		default:
			return fmt.Errorf("SENSOR_SOURCE must be mpu9250, serial or mock, got %q", value)
		}
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_SERIAL_PORT":
		c.IMUSerialPort = value
	case "IMU_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_BAUD_RATE %q: %w", value, err)
		}
		c.IMUBaudRate = rate
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Sampling
	case "WINDOW_SIZE":
		return setInt(&c.WindowSize, key, value)
	case "SAMPLE_INTERVAL_MS":
		return setInt(&c.SampleIntervalMS, key, value)
	case "PIPELINE_QUEUE_DEPTH":
		return setInt(&c.PipelineQueueDepth, key, value)
	case "CLASSIFY_BUDGET_MS":
		return setInt(&c.ClassifyBudgetMS, key, value)

	// Classifier
	case "MODEL_PATH":
		c.ModelPath = value

	// Actuation
	case "STEP_DEGREES":
		return setInt(&c.StepDegrees, key, value)
	case "SMOOTHING_SUBSTEPS":
		return setInt(&c.SmoothingSubSteps, key, value)
	case "SMOOTHING_DELAY_MS":
		return setInt(&c.SmoothingDelayMS, key, value)
	case "ACTUATOR":
		switch value {
		case "pca9685", "log":
			c.Actuator = value
		default:
			return fmt.Errorf("ACTUATOR must be pca9685 or log, got %q", value)
		}
	case "PCA9685_I2C_BUS":
		c.PCA9685I2CBus = value
	case "PCA9685_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid PCA9685_I2C_ADDR %q: %w", value, err)
		}
		c.PCA9685I2CAddr = uint16(addr)
	case "SERVO_MIN_PWM":
		return setInt(&c.ServoMinPWM, key, value)
	case "SERVO_MAX_PWM":
		return setInt(&c.ServoMaxPWM, key, value)

	// History
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "REDIS_HISTORY_KEY":
		c.RedisHistoryKey = value
	case "REDIS_HISTORY_LEN":
		return setInt(&c.RedisHistoryLen, key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		return setInt(&c.WebServerPort, key, value)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		return setInt(&c.DisplayUpdateInterval, key, value)

	default:
		if strings.HasPrefix(key, "JOINT_") {
			return c.setJointValue(key, value)
		}
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// setJointValue handles JOINT_<NEAR|FAR|BASE>_<FIELD>.
func (c *Config) setJointValue(key, value string) error {
	rest := strings.TrimPrefix(key, "JOINT_")
	name, field, ok := strings.Cut(rest, "_")
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	var j *Joint
	switch name {
	case "NEAR":
		j = &c.JointNear
	case "FAR":
		j = &c.JointFar
	case "BASE":
		j = &c.JointBase
	default:
		return fmt.Errorf("unknown joint %q in %q", name, key)
	}

	switch field {
	case "CHANNEL":
		return setInt(&j.Channel, key, value)
	case "MIN":
		return setInt(&j.Min, key, value)
	case "MAX":
		return setInt(&j.Max, key, value)
	case "INIT":
		return setInt(&j.Init, key, value)
	case "UP_DIRECTION":
		if name == "BASE" {
			return fmt.Errorf("%s: the base joint has no up direction", key)
		}
		return setInt(&j.UpDirection, key, value)
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
}

func setInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// Validate checks the values the control core depends on. It runs before any
// hardware is touched, so a bad file never moves the arm.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return &ConfigError{Key: "MQTT_BROKER", Reason: "is required"}
	}
	if c.WindowSize < 1 {
		return &ConfigError{Key: "WINDOW_SIZE", Reason: fmt.Sprintf("must be >= 1, got %d", c.WindowSize)}
	}
	if c.SampleIntervalMS <= 0 {
		return &ConfigError{Key: "SAMPLE_INTERVAL_MS", Reason: fmt.Sprintf("must be positive, got %d", c.SampleIntervalMS)}
	}
	if c.PipelineQueueDepth < 0 || c.PipelineQueueDepth > 2 {
		return &ConfigError{Key: "PIPELINE_QUEUE_DEPTH", Reason: fmt.Sprintf("must be 0-2, got %d", c.PipelineQueueDepth)}
	}
	if c.ClassifyBudgetMS < 0 {
		return &ConfigError{Key: "CLASSIFY_BUDGET_MS", Reason: fmt.Sprintf("must not be negative, got %d", c.ClassifyBudgetMS)}
	}
	if c.StepDegrees <= 0 {
		return &ConfigError{Key: "STEP_DEGREES", Reason: fmt.Sprintf("must be positive, got %d", c.StepDegrees)}
	}
	if c.SmoothingSubSteps < 1 {
		return &ConfigError{Key: "SMOOTHING_SUBSTEPS", Reason: fmt.Sprintf("must be >= 1, got %d", c.SmoothingSubSteps)}
	}
	if c.SmoothingDelayMS < 0 {
		return &ConfigError{Key: "SMOOTHING_DELAY_MS", Reason: fmt.Sprintf("must not be negative, got %d", c.SmoothingDelayMS)}
	}
	if c.ServoMinPWM < 0 || c.ServoMaxPWM <= c.ServoMinPWM || c.ServoMaxPWM > 4095 {
		return &ConfigError{Key: "SERVO_MAX_PWM", Reason: fmt.Sprintf("need 0 <= SERVO_MIN_PWM < SERVO_MAX_PWM <= 4095, got %d..%d", c.ServoMinPWM, c.ServoMaxPWM)}
	}
	if c.SensorSource == "serial" && c.IMUSerialPort == "" {
		return &ConfigError{Key: "IMU_SERIAL_PORT", Reason: "is required when SENSOR_SOURCE=serial"}
	}

	joints := []struct {
		name     string
		j        Joint
		vertical bool
	}{
		{"NEAR", c.JointNear, true},
		{"FAR", c.JointFar, true},
		{"BASE", c.JointBase, false},
	}
	seen := map[int]string{}
	for _, jc := range joints {
		prefix := "JOINT_" + jc.name + "_"
		if jc.j.Min > jc.j.Max {
			return &ConfigError{Key: prefix + "MIN", Reason: fmt.Sprintf("min %d > max %d", jc.j.Min, jc.j.Max)}
		}
		if jc.j.Init < jc.j.Min || jc.j.Init > jc.j.Max {
			return &ConfigError{Key: prefix + "INIT", Reason: fmt.Sprintf("%d outside [%d,%d]", jc.j.Init, jc.j.Min, jc.j.Max)}
		}
		if jc.vertical && jc.j.UpDirection != 1 && jc.j.UpDirection != -1 {
			return &ConfigError{Key: prefix + "UP_DIRECTION", Reason: fmt.Sprintf("must be 1 or -1, got %d", jc.j.UpDirection)}
		}
		if jc.j.Channel < 0 || jc.j.Channel > 15 {
			return &ConfigError{Key: prefix + "CHANNEL", Reason: fmt.Sprintf("must be 0-15, got %d", jc.j.Channel)}
		}
		if other, dup := seen[jc.j.Channel]; dup {
			return &ConfigError{Key: prefix + "CHANNEL", Reason: fmt.Sprintf("channel %d already used by %s", jc.j.Channel, other)}
		}
		seen[jc.j.Channel] = jc.name
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so it only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
