package domain

import (
	"context"
	"time"
)

// ActionKind is the closed set of things a notification action can do.
type ActionKind string

const (
	ActionNavigate       ActionKind = "navigate"
	ActionInvokeEndpoint ActionKind = "invoke_endpoint"
	ActionOpenModal      ActionKind = "open_modal"
	ActionSnooze         ActionKind = "snooze"
	ActionDismiss        ActionKind = "dismiss"
	ActionCustom         ActionKind = "custom"
)

func (k ActionKind) String() string {
	return string(k)
}

// Action is a tagged union over ActionKind. Only the fields relevant to
// the kind are populated; Validate enforces that.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label"`

	// ActionNavigate: target path, may contain {token} placeholders
	// substituted from the request context.
	Path string `json:"path,omitempty"`

	// ActionInvokeEndpoint
	Method   string `json:"method,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	// ActionOpenModal
	Modal string `json:"modal,omitempty"`

	// ActionSnooze
	SnoozeFor time.Duration `json:"snooze_for,omitempty"`

	// ActionCustom. Handlers are process-local and never serialized.
	Handler func(ctx context.Context) error `json:"-"`
}

func (a Action) Validate() error {
	switch a.Kind {
	case ActionNavigate:
		if a.Path == "" {
			return ErrInvalidAction
		}
	case ActionInvokeEndpoint:
		if a.Endpoint == "" {
			return ErrInvalidAction
		}
	case ActionOpenModal:
		if a.Modal == "" {
			return ErrInvalidAction
		}
	case ActionSnooze:
		if a.SnoozeFor <= 0 {
			return ErrInvalidAction
		}
	case ActionDismiss:
		// no payload
	case ActionCustom:
		if a.Handler == nil {
			return ErrInvalidAction
		}
	default:
		return ErrInvalidAction
	}
	return nil
}
