// Package notify implements the pluggable notifier fan-out (C4). Per the
// static-registry redesign (spec.md §9 REDESIGN FLAGS), notifiers are wired
// at compile time through a list of Factory values rather than discovered
// by scanning a plugin directory at runtime.
package notify

import (
	"context"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/logging"
)

// Notifier is the base capability every registered sink implements: nothing.
// The four operations spec.md §4.4 lists ("start, send_eew, update_eew,
// lift_eew — any method may be absent") are each expressed as their own
// narrow interface below; a concrete notifier implements whichever subset
// applies and is type-asserted against each at dispatch time, which is the
// Go analogue of an "any method may be absent" base class with no-op
// defaults.
type Notifier interface {
	// Name identifies the notifier in logs.
	Name() string
}

// Starter is implemented by notifiers needing one-shot cooperative startup
// (connecting, authenticating, etc).
type Starter interface {
	Start(ctx context.Context) error
}

// EEWSender is called on a NEW classification.
type EEWSender interface {
	SendEEW(ctx context.Context, a alert.Alert) error
}

// EEWUpdater is called on an UPDATE classification.
type EEWUpdater interface {
	UpdateEEW(ctx context.Context, a alert.Alert) error
}

// EEWLifter is called when an alert is lifted (TTL expiry, HTTP
// set-difference, or an explicit provider signal).
type EEWLifter interface {
	LiftEEW(ctx context.Context, a alert.Alert) error
}

// Closer is implemented by notifiers holding a resource (connection, file)
// that must be released on shutdown.
type Closer interface {
	Close(ctx context.Context) error
}

// Factory builds one Notifier from its configuration namespace. Namespace
// is the Go analogue of the original's plugin `namespace` descriptor field
// (original_source/src/notify/abc.py); New is the analogue of its
// `register(config_section, logger) -> Notifier?`.
type Factory interface {
	Namespace() string
	New(section config.Section, logger logging.Logger) (Notifier, error)
}
