package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/nsim/scenario"
	"github.com/sarchlab/nsim/sim"
	"github.com/sarchlab/nsim/simulation"
)

type runOptions struct {
	stop        string
	queue       string
	record      bool
	output      string
	monitor     bool
	monitorPort int
	openBrowser bool
	logLevel    string
	eventLog    bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print a summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.stop, "stop", "",
		"Stop time, e.g. 30s. Overrides the stop time of the scenario.")
	flags.StringVar(&opts.queue, "queue", "heap",
		"Future event queue, heap or list.")
	flags.BoolVar(&opts.record, "record", false,
		"Record the events into a SQLite database.")
	flags.StringVar(&opts.output, "output", "",
		"Name of the recording database, without extension.")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Start the monitoring server.")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. A random port is used if not set.")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring page in a browser.")
	flags.StringVar(&opts.logLevel, "log-level", "info",
		"Log level: debug, info, warning, or error.")
	flags.BoolVar(&opts.eventLog, "event-log", false,
		"Log every dispatched event.")

	return cmd
}

func (o *runOptions) builder(logger logrus.FieldLogger) (simulation.Builder, error) {
	b := simulation.MakeBuilder().WithLogger(logger)

	switch o.queue {
	case "heap":
	case "list":
		b = b.WithInsertionQueue()
	default:
		return b, fmt.Errorf("unknown queue %q, use heap or list", o.queue)
	}

	if o.monitor {
		if o.monitorPort != 0 {
			b = b.WithMonitorPort(o.monitorPort)
		}

		if o.openBrowser {
			b = b.WithBrowser()
		}
	} else {
		if o.monitorPort != 0 || o.openBrowser {
			return b, errors.New("--monitor-port and --open-browser need --monitor")
		}

		b = b.WithoutMonitoring()
	}

	if o.record {
		if o.output != "" {
			b = b.WithOutputFileName(o.output)
		}
	} else {
		if o.output != "" {
			return b, errors.New("--output needs --record")
		}

		b = b.WithoutRecording()
	}

	if o.eventLog {
		b = b.WithEventLogging()
	}

	return b, nil
}

func runScenario(
	out, errOut io.Writer,
	filename string,
	opts *runOptions,
) (err error) {
	cfg, err := scenario.Load(filename)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(errOut)
	logger.SetLevel(level)

	b, err := opts.builder(logger)
	if err != nil {
		return err
	}

	var stop sim.VTime
	if opts.stop != "" {
		stop, err = sim.ParseTime(opts.stop)
		if err != nil {
			return err
		}
	}

	s := b.Build()
	defer func() {
		terr := s.Terminate()
		if err == nil {
			err = terr
		}
	}()

	runner, err := scenario.NewRunner(cfg, s)
	if err != nil {
		return err
	}

	if opts.stop != "" {
		runner.SetStopTime(stop)
	}

	report, err := runner.Run()
	if err != nil {
		return err
	}

	err = report.Print(out)
	if err != nil {
		return err
	}

	if s.OutputPath() != "" {
		fmt.Fprintf(out, "\nRecording:  %s\n", s.OutputPath())
	}

	return nil
}
