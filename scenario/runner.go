package scenario

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/nsim/sim"
	"github.com/sarchlab/nsim/simulation"
	"github.com/sarchlab/nsim/tracing"
)

// A Runner turns a scenario into nodes, links, and applications on a
// simulation, and runs it.
type Runner struct {
	cfg        *Config
	simulation *simulation.Simulation
	network    *Network
	streams    *Streams
	apps       []Application
	appTypes   map[string]string
	stop       sim.VTime
}

// NewRunner builds the network and installs the applications. Node i runs
// in context i.
func NewRunner(cfg *Config, s *simulation.Simulation) (*Runner, error) {
	r := &Runner{
		cfg:        cfg,
		simulation: s,
		network:    NewNetwork(s.Scheduler(), s.Logger()),
		appTypes:   make(map[string]string),
	}

	stop, err := optionalTime(cfg.Stop)
	if err != nil {
		return nil, fmt.Errorf("stop: %w", err)
	}
	r.stop = stop

	r.streams, err = NewStreams(cfg.Seed)
	if err != nil {
		return nil, err
	}

	err = r.buildNetwork()
	if err != nil {
		return nil, err
	}

	err = r.installApps()
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Runner) buildNetwork() error {
	for _, n := range r.cfg.Nodes {
		node, err := r.network.AddNode(n.Name)
		if err != nil {
			return err
		}

		r.simulation.RegisterContext(node.ID, node.Name)
	}

	for _, l := range r.cfg.Links {
		delay, err := l.DelayTime()
		if err != nil {
			return err
		}

		rate, err := l.Rate()
		if err != nil {
			return err
		}

		err = r.network.Connect(l.A, l.B, delay, rate)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) installApps() error {
	logger := r.simulation.Logger()

	for _, a := range r.cfg.Applications {
		app, err := NewApplication(a, r.network, r.streams, logger)
		if err != nil {
			return fmt.Errorf("application %s: %w", a.Name, err)
		}

		start, err := optionalTime(a.Start)
		if err != nil {
			return err
		}

		stop, err := optionalTime(a.Stop)
		if err != nil {
			return err
		}

		err = Install(r.simulation.Scheduler(), app, start, stop)
		if err != nil {
			return err
		}

		r.apps = append(r.apps, app)
		r.appTypes[app.Name()] = a.Type
	}

	return nil
}

// Network returns the network built from the scenario.
func (r *Runner) Network() *Network {
	return r.network
}

// Applications returns the applications in the order they are declared.
func (r *Runner) Applications() []Application {
	return r.apps
}

// SetStopTime overrides the stop time of the scenario. Zero means that the
// simulation runs until no event is left.
func (r *Runner) SetStopTime(t sim.VTime) {
	r.stop = t
}

// StopTime returns the time when the simulation stops.
func (r *Runner) StopTime() sim.VTime {
	return r.stop
}

// Run runs the simulation and summarizes what happened.
func (r *Runner) Run() (*RunReport, error) {
	s := r.simulation.Scheduler()

	if r.stop > 0 {
		s.StopAt(r.stop)
		r.followProgress()
	}

	r.simulation.RecordExecInfo("Scenario", r.cfg.Name)
	r.simulation.RecordExecInfo("Nodes", strconv.Itoa(len(r.cfg.Nodes)))
	r.simulation.RecordExecInfo("Stop Time", r.stop.String())

	r.simulation.Logger().WithField("scenario", r.cfg.Name).Info("running")

	err := s.Run()
	if err != nil {
		return nil, err
	}

	report := r.report()

	r.simulation.RecordExecInfo("Final Time", report.FinalTime.String())
	r.simulation.RecordExecInfo("Events", strconv.FormatUint(report.Executed, 10))

	return report, nil
}

func (r *Runner) followProgress() {
	m := r.simulation.Monitor()
	if m == nil {
		return
	}

	unit := r.stop / 1000
	if unit <= 0 {
		unit = 1
	}

	p := m.NewSimTimeProgress(r.cfg.Name, r.stop, unit)
	r.simulation.Scheduler().AcceptHook(p)
}

// A RunReport summarizes a run.
type RunReport struct {
	Name      string
	FinalTime sim.VTime
	Executed  uint64
	Pending   int
	Delivered uint64
	Dropped   uint64
	Apps      []AppReport
	Contexts  []tracing.ContextStats
}

// AppReport summarizes an application.
type AppReport struct {
	Name          string
	Type          string
	Node          string
	Sent          uint64
	Received      uint64
	BytesReceived uint64
	RTTMean       sim.VTime
	RTTStdDev     sim.VTime
	RTTMedian     sim.VTime
}

func (r *Runner) report() *RunReport {
	s := r.simulation.Scheduler()

	report := &RunReport{
		Name:      r.cfg.Name,
		FinalTime: s.Now(),
		Executed:  s.ExecutedEventCount(),
		Pending:   s.PendingEventCount(),
		Delivered: r.network.Delivered(),
		Dropped:   r.network.Dropped(),
		Contexts:  r.simulation.ContextCounter().Stats(),
	}

	for _, app := range r.apps {
		report.Apps = append(report.Apps, r.appReport(app))
	}

	slices.SortFunc(report.Apps, func(a, b AppReport) int {
		return strings.Compare(a.Name, b.Name)
	})

	return report
}

func (r *Runner) appReport(app Application) AppReport {
	stats := app.Stats()

	ar := AppReport{
		Name:          app.Name(),
		Type:          r.appTypes[app.Name()],
		Node:          app.Node().Name,
		Sent:          stats.Sent,
		Received:      stats.Received,
		BytesReceived: stats.BytesReceived,
	}

	ar.RTTMean, ar.RTTStdDev, ar.RTTMedian = rttSummary(stats.RTTs)

	return ar
}

// rttSummary returns the mean, the standard deviation, and the median of the
// round trip times.
func rttSummary(rtts []sim.VTime) (mean, stdDev, median sim.VTime) {
	if len(rtts) == 0 {
		return 0, 0, 0
	}

	x := make([]float64, len(rtts))
	for i, rtt := range rtts {
		x[i] = float64(rtt)
	}

	slices.Sort(x)

	m, sd := stat.MeanStdDev(x, nil)
	if len(x) < 2 || math.IsNaN(sd) {
		sd = 0
	}

	med := stat.Quantile(0.5, stat.Empirical, x, nil)

	return sim.VTime(math.Round(m)), sim.VTime(math.Round(sd)),
		sim.VTime(math.Round(med))
}

// Print writes the report as aligned text.
func (r *RunReport) Print(w io.Writer) error {
	fmt.Fprintf(w, "Scenario:   %s\n", r.Name)
	fmt.Fprintf(w, "Final time: %s\n", r.FinalTime)
	fmt.Fprintf(w, "Events:     %d executed, %d pending\n", r.Executed, r.Pending)
	fmt.Fprintf(w, "Packets:    %d delivered, %d dropped\n\n", r.Delivered, r.Dropped)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "APP\tTYPE\tNODE\tSENT\tRECEIVED\tBYTES\tRTT MEAN\tRTT STDDEV\tRTT MEDIAN")
	for _, a := range r.Apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			a.Name, a.Type, a.Node, a.Sent, a.Received, a.BytesReceived,
			a.RTTMean.Duration(), a.RTTStdDev.Duration(), a.RTTMedian.Duration())
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CONTEXT\tNAME\tEVENTS\tLAST DISPATCH")
	for _, c := range r.Contexts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			c.Context, c.Name, c.Count, c.LastDispatch)
	}

	return tw.Flush()
}
