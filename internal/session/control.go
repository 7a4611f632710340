package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/payload"
)

// Control actions accepted on the control topic.
const (
	ActionReconfigure = "reconfigure"
	ActionGPIO        = "gpio"
	ActionOTAUpdate   = "ota_update"
)

// gpioConfigure selects pin configuration in a gpio action; any other
// value requests a level change.
const gpioConfigure = "config"

// collaboratorTimeout bounds GPIO and OTA calls made from the control handler.
const collaboratorTimeout = 2 * time.Second

// handleControl is installed on the control topic when the session connects.
//
// Message schema:
//
//	{"action": "reconfigure"}
//	{"action": "gpio", "gpio": "config", "pin": "4", "type": "output"}
//	{"action": "gpio", "gpio": "state", "pin": "4", "state": "on"}
//	{"action": "ota_update", "url": "<optional source>"}
func (s *Session) handleControl(msg Message) error {
	action, err := msg.Doc.String("action")
	if err != nil {
		return fmt.Errorf("reading action: %w", err)
	}

	switch action {
	case ActionReconfigure:
		return msg.Publisher.SendIdentity()
	case ActionGPIO:
		return s.handleGPIO(msg.Doc)
	case ActionOTAUpdate:
		return s.handleOTA(msg.Doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (s *Session) handleGPIO(doc payload.Document) error {
	if s.gpio == nil {
		return fmt.Errorf("%w: gpio", ErrNoCollaborator)
	}

	option, err := doc.String("gpio")
	if err != nil {
		return fmt.Errorf("reading gpio option: %w", err)
	}
	pin, err := doc.Int("pin")
	if err != nil {
		return fmt.Errorf("reading pin: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	if option == gpioConfigure {
		typ, err := doc.String("type")
		if err != nil {
			return fmt.Errorf("reading pin type: %w", err)
		}
		mode, err := gpio.ParseMode(typ)
		if err != nil {
			return err
		}
		if err := s.gpio.Configure(ctx, pin, mode); err != nil {
			return fmt.Errorf("configuring pin %d: %w", pin, err)
		}
		s.logger.Info("gpio configured", "pin", pin, "mode", string(mode))
		return nil
	}

	state, err := doc.String("state")
	if err != nil {
		return fmt.Errorf("reading pin state: %w", err)
	}
	level, err := gpio.ParseLevel(state)
	if err != nil {
		return err
	}
	if err := s.gpio.SetLevel(ctx, pin, level); err != nil {
		return fmt.Errorf("setting pin %d: %w", pin, err)
	}
	s.logger.Info("gpio level set", "pin", pin, "level", string(level))
	return nil
}

func (s *Session) handleOTA(doc payload.Document) error {
	if s.ota == nil {
		return fmt.Errorf("%w: ota", ErrNoCollaborator)
	}

	source, err := doc.String("url")
	if err != nil && !errors.Is(err, payload.ErrFieldNotFound) {
		return fmt.Errorf("reading update source: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	if err := s.ota.Trigger(ctx, source); err != nil {
		return fmt.Errorf("triggering update: %w", err)
	}
	return nil
}
