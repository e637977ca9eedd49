// Package simulation assembles a scheduler with the services around it: data
// recording, event tracing, logging, and the monitoring server.
package simulation

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/nsim/datarecording"
	"github.com/sarchlab/nsim/monitoring"
	"github.com/sarchlab/nsim/sim"
	"github.com/sarchlab/nsim/tracing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id     string
	logger logrus.FieldLogger

	scheduler      *sim.Scheduler
	contextCounter *tracing.ContextCounter

	dataRecorder  datarecording.DataRecorder
	outputPath    string
	execRecorder  *datarecording.ExecRecorder
	eventRecorder *tracing.EventRecorder

	monitor    *monitoring.Monitor
	monitorURL string

	contextNames map[sim.ContextID]string
	terminated   bool
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Scheduler returns the scheduler that runs the simulation.
func (s *Simulation) Scheduler() *sim.Scheduler {
	return s.scheduler
}

// Logger returns the logger of the simulation.
func (s *Simulation) Logger() logrus.FieldLogger {
	return s.logger
}

// DataRecorder returns the data recorder, or nil if recording is disabled.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// OutputPath returns the path of the recording database, or an empty string
// if recording is disabled.
func (s *Simulation) OutputPath() string {
	return s.outputPath
}

// EventRecorder returns the hook that records events, or nil if recording is
// disabled.
func (s *Simulation) EventRecorder() *tracing.EventRecorder {
	return s.eventRecorder
}

// Monitor returns the monitor, or nil if monitoring is disabled.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// ContextCounter returns the hook that counts events per context.
func (s *Simulation) ContextCounter() *tracing.ContextCounter {
	return s.contextCounter
}

// RegisterContext gives a context a name. It panics if the context is already
// registered.
func (s *Simulation) RegisterContext(ctx sim.ContextID, name string) {
	if ctx == sim.GlobalContext {
		panic("the global context cannot be registered")
	}

	if existing, ok := s.contextNames[ctx]; ok {
		panic(fmt.Sprintf("context %s already registered as %s", ctx, existing))
	}

	s.contextNames[ctx] = name
	s.contextCounter.SetName(ctx, name)
}

// ContextName returns the name of a registered context.
func (s *Simulation) ContextName(ctx sim.ContextID) (string, bool) {
	if ctx == sim.GlobalContext {
		return "global", true
	}

	name, ok := s.contextNames[ctx]

	return name, ok
}

// RecordExecInfo adds a property to the exec_info table. It does nothing if
// recording is disabled.
func (s *Simulation) RecordExecInfo(property, value string) {
	if s.execRecorder == nil {
		return
	}

	s.execRecorder.Record(property, value)
}

// Terminate destroys the scheduler and closes the recording. Calling it more
// than once does nothing.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}
	s.terminated = true

	s.scheduler.Destroy()

	if s.dataRecorder == nil {
		return nil
	}

	s.execRecorder.End()

	err := s.dataRecorder.Close()
	if err != nil {
		return fmt.Errorf("closing recording %s: %w", s.outputPath, err)
	}

	s.logger.WithField("path", s.outputPath).Info("recording saved")

	return nil
}
