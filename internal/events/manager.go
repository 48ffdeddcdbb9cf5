package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager stamps, logs and publishes events
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager publishing on bus
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped emits an event with typed data
func (m *Manager) EmitTyped(module string, data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	m.log.Debug().
		Str("type", string(event.Type)).
		Str("module", module).
		Msg("Event emitted")

	m.bus.Publish(event)
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.log.Error().
		Err(err).
		Str("module", module).
		Interface("context", context).
		Msg("Error event")

	m.EmitTyped(module, &ErrorData{Error: err.Error(), Context: context})
}
