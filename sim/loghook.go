package sim

import (
	"github.com/sirupsen/logrus"
)

// LogHookBase provides the common logic for the hooks that record
// information from the simulation into a logger.
type LogHookBase struct {
	Logger logrus.FieldLogger
}
