// Copyright 2026 The Credentia Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(cfg Config, serviceName string) *Meter {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(serviceName)}
	}
	// Exporters are configured on the global provider by the host process.
	return &Meter{meter: otel.Meter(serviceName)}
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// AccountMetrics records account lifecycle counters
type AccountMetrics struct {
	logins        metric.Int64Counter
	lockouts      metric.Int64Counter
	registrations metric.Int64Counter
	notifyFails   metric.Int64Counter
}

// NewAccountMetrics registers the account counters on m
func NewAccountMetrics(m *Meter) (*AccountMetrics, error) {
	var (
		am  AccountMetrics
		err error
	)
	if am.logins, err = m.CreateCounter("account_logins_total", "Login attempts by outcome"); err != nil {
		return nil, err
	}
	if am.lockouts, err = m.CreateCounter("account_lockouts_total", "Accounts locked after repeated failed logins"); err != nil {
		return nil, err
	}
	if am.registrations, err = m.CreateCounter("account_registrations_total", "New accounts registered"); err != nil {
		return nil, err
	}
	if am.notifyFails, err = m.CreateCounter("notification_failures_total", "Notifications that could not be delivered"); err != nil {
		return nil, err
	}
	return &am, nil
}

func (a *AccountMetrics) LoginAttempt(ctx context.Context, outcome string) {
	a.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (a *AccountMetrics) AccountLocked(ctx context.Context) {
	a.lockouts.Add(ctx, 1)
}

func (a *AccountMetrics) Registered(ctx context.Context) {
	a.registrations.Add(ctx, 1)
}

func (a *AccountMetrics) NotificationFailed(ctx context.Context, kind string) {
	a.notifyFails.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
