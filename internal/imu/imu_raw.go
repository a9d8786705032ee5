// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// IMURaw is one raw accel+gyro reading in sensor counts.
type IMURaw struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// StandardGravity converts g to m/s².
const StandardGravity = 9.80665

// Scale converts raw counts into physical units using the MPU-6050/9250
// sensitivity tables. accelRange and gyroRange are the FS_SEL codes (0-3).
func (r IMURaw) Scale(accelRange, gyroRange byte) Sample {
	accelLSB := [4]float64{16384, 8192, 4096, 2048}[accelRange&3]
	gyroLSB := [4]float64{131, 65.5, 32.8, 16.4}[gyroRange&3]

	a := func(v int16) float64 { return float64(v) / accelLSB * StandardGravity }
	g := func(v int16) float64 { return float64(v) / gyroLSB }

	return Sample{a(r.Ax), a(r.Ay), a(r.Az), g(r.Gx), g(r.Gy), g(r.Gz)}
}
