// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gesture_arm/internal/arm"
)

// publishTimeout keeps a slow broker from eating into the sampling cadence.
const publishTimeout = 500 * time.Millisecond

// Connect opens an MQTT connection with the given client id.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to broker at %s as %s", broker, clientID)
	return client, nil
}

// MQTTSink publishes every cycle record, and the arm state as a retained
// message so late subscribers see the current pose.
type MQTTSink struct {
	client     mqtt.Client
	cycleTopic string
	stateTopic string
}

func NewMQTTSink(client mqtt.Client, cycleTopic, stateTopic string) *MQTTSink {
	return &MQTTSink{client: client, cycleTopic: cycleTopic, stateTopic: stateTopic}
}

func (s *MQTTSink) Publish(_ context.Context, rec CycleRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("json marshal error (cycle): %w", err)
	}
	if err := s.publish(s.cycleTopic, false, payload); err != nil {
		return err
	}
	if len(rec.Joints) == 0 {
		// Aborted by the sampler, which does not know the arm state.
		return nil
	}

	state, err := json.Marshal(rec.Joints)
	if err != nil {
		return fmt.Errorf("json marshal error (state): %w", err)
	}
	return s.publish(s.stateTopic, true, state)
}

// PublishState sends the arm state on its own, e.g. right after homing.
func (s *MQTTSink) PublishState(state arm.ArmState) error {
	var rec CycleRecord
	rec.FillJoints(state, nil)
	payload, err := json.Marshal(rec.Joints)
	if err != nil {
		return fmt.Errorf("json marshal error (state): %w", err)
	}
	return s.publish(s.stateTopic, true, payload)
}

func (s *MQTTSink) publish(topic string, retained bool, payload []byte) error {
	token := s.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish timeout (%s)", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, token.Error())
	}
	return nil
}
