package sim

import (
	"github.com/sirupsen/logrus"
)

// EventLogger is an hook that logs the events dispatched and cancelled.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which will write into the logger
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	info, ok := ctx.Item.(EventInfo)
	if !ok {
		return
	}

	entry := h.Logger.WithFields(logrus.Fields{
		"time":    info.Time.String(),
		"context": info.Context.String(),
		"id":      info.ID,
		"event":   info.Name(),
	})

	switch ctx.Pos {
	case HookPosBeforeEvent:
		entry.Info("dispatch")
	case HookPosCancel:
		entry.Debug("cancel")
	}
}
