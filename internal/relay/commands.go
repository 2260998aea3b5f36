package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-shelly/internal/shelly"
)

// Command names, the last segment of graylogic/shelly/command/{name}.
const (
	CommandStaleTime = "stale_time"
	CommandRemove    = "remove"
)

// commandQoS is the subscription QoS for control commands.
const commandQoS = 1

// Controller is the part of the registry commands act on.
// Satisfied by *shelly.Shellies.
type Controller interface {
	SetStaleTime(d time.Duration)
	Get(deviceType, deviceID string) (shelly.Device, bool)
	Remove(d shelly.Device) error
}

// Subscriber registers MQTT handlers. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

type staleTimeCommand struct {
	StaleTime string `json:"stale_time" validate:"required"`
}

type removeCommand struct {
	Type string `json:"type" validate:"required,max=32"`
	ID   string `json:"id" validate:"required,max=64"`
}

// Commands applies control messages received over MQTT.
type Commands struct {
	ctl      Controller
	validate *validator.Validate
	logger   Logger
}

// NewCommands creates a command handler for ctl.
func NewCommands(ctl Controller, logger Logger) *Commands {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Commands{
		ctl:      ctl,
		validate: validator.New(),
		logger:   logger,
	}
}

// Subscribe registers Handle for every command topic.
func (c *Commands) Subscribe(sub Subscriber) error {
	if err := sub.Subscribe(mqtt.Topics{}.AllShellyCommands(), commandQoS, c.Handle); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	return nil
}

// Handle decodes, validates and applies one command message.
//
// Parameters:
//   - topic: graylogic/shelly/command/{name}
//   - payload: JSON body for the named command
//
// Returns:
//   - error: ErrUnknownCommand, ErrInvalidCommand or ErrNotRegistered
func (c *Commands) Handle(topic string, payload []byte) error {
	name := topic[strings.LastIndex(topic, "/")+1:]

	switch name {
	case CommandStaleTime:
		var cmd staleTimeCommand
		if err := c.decode(payload, &cmd); err != nil {
			return err
		}
		d, err := time.ParseDuration(cmd.StaleTime)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: stale_time %q must be a positive duration", ErrInvalidCommand, cmd.StaleTime)
		}
		c.ctl.SetStaleTime(d)
		c.logger.Info("stale time changed by command", "stale_time", d)
		return nil

	case CommandRemove:
		var cmd removeCommand
		if err := c.decode(payload, &cmd); err != nil {
			return err
		}
		d, ok := c.ctl.Get(cmd.Type, cmd.ID)
		if !ok {
			return fmt.Errorf("%w: %s#%s", ErrNotRegistered, cmd.Type, cmd.ID)
		}
		if err := c.ctl.Remove(d); err != nil {
			return fmt.Errorf("removing %s#%s: %w", cmd.Type, cmd.ID, err)
		}
		c.logger.Info("device removed by command", "type", cmd.Type, "id", cmd.ID)
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

func (c *Commands) decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return nil
}
