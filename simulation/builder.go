package simulation

import (
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/nsim/datarecording"
	"github.com/sarchlab/nsim/monitoring"
	"github.com/sarchlab/nsim/sim"
	"github.com/sarchlab/nsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	queueKind      sim.QueueKind
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	recordOn       bool
	outputFileName string
	logger         logrus.FieldLogger
	eventLogging   bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		queueKind: sim.HeapQueue,
		monitorOn: true,
		recordOn:  true,
	}
}

// WithInsertionQueue makes the scheduler keep future events in a sorted list
// rather than a heap.
func (b Builder) WithInsertionQueue() Builder {
	b.queueKind = sim.InsertionQueue
	return b
}

// WithQueue sets the kind of the future event queue.
func (b Builder) WithQueue(kind sim.QueueKind) Builder {
	b.queueKind = kind
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring page once the server starts.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithoutRecording sets the simulation to not write a recording database.
func (b Builder) WithoutRecording() Builder {
	b.recordOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithLogger sets the logger used by the simulation.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithEventLogging logs every dispatched event.
func (b Builder) WithEventLogging() Builder {
	b.eventLogging = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.openBrowser {
		panic("browser cannot be opened when monitoring is disabled")
	}

	if !b.recordOn && b.outputFileName != "" {
		panic("output file name cannot be set when recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:           xid.New().String(),
		contextNames: make(map[sim.ContextID]string),
	}

	s.logger = b.logger
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	s.logger = s.logger.WithField("simulation", s.id)

	s.scheduler = sim.NewSchedulerWithQueue(b.queueKind)

	s.contextCounter = tracing.NewContextCounter()
	s.scheduler.AcceptHook(s.contextCounter)

	if b.eventLogging {
		s.scheduler.AcceptHook(sim.NewEventLogger(s.logger))
	}

	if b.recordOn {
		b.buildRecording(s)
	}

	if b.monitorOn {
		b.buildMonitor(s)
	}

	return s
}

func (b Builder) buildRecording(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "nsim_" + s.id
	}

	s.dataRecorder = datarecording.New(outputPath)
	s.outputPath = outputPath + ".sqlite3"

	s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
	s.execRecorder.Start()

	s.eventRecorder = tracing.NewEventRecorder(s.scheduler, s.dataRecorder)
	s.scheduler.AcceptHook(s.eventRecorder)
}

func (b Builder) buildMonitor(s *Simulation) {
	s.monitor = monitoring.NewMonitor()
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	if b.openBrowser {
		s.monitor.WithBrowser()
	}

	s.monitor.RegisterScheduler(s.scheduler)
	s.monitor.RegisterContextCounter(s.contextCounter)
	s.monitorURL = s.monitor.StartServer()

	s.logger.WithField("url", s.monitorURL).Info("monitoring server started")
}
