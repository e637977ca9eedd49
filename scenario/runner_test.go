package scenario

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/nsim/datarecording"
	"github.com/sarchlab/nsim/sim"
	"github.com/sarchlab/nsim/simulation"
	"github.com/sarchlab/nsim/tracing"
)

// One way from client to server: 2ms + 1024*8 bit at 5Mbps + 3ms.
const echoRTT = 2 * (5*sim.MilliSecond + 1638400*sim.NanoSecond)

var _ = Describe("Runner", func() {
	var (
		outputFile string
		s          *simulation.Simulation
		runner     *Runner
	)

	BeforeEach(func() {
		logger, _ := test.NewNullLogger()
		outputFile = filepath.Join(GinkgoT().TempDir(), "echo")
		s = simulation.MakeBuilder().
			WithoutMonitoring().
			WithOutputFileName(outputFile).
			WithLogger(logger).
			Build()

		cfg, err := Parse([]byte(echoScenario))
		Expect(err).NotTo(HaveOccurred())

		runner, err = NewRunner(cfg, s)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(s.Terminate()).To(Succeed())
	})

	It("should build the network", func() {
		Expect(runner.Network().Nodes()).To(HaveLen(3))
		Expect(runner.Applications()).To(HaveLen(2))
		Expect(runner.StopTime()).To(Equal(10 * sim.Second))

		name, ok := s.ContextName(2)
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("server"))
	})

	It("should run the scenario", func() {
		report, err := runner.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(report.Name).To(Equal("echo"))
		Expect(report.FinalTime).To(Equal(3*sim.Second + echoRTT))
		Expect(report.Executed).To(Equal(uint64(16)))
		Expect(report.Pending).To(BeZero())
		Expect(report.Delivered).To(Equal(uint64(6)))
		Expect(report.Dropped).To(BeZero())

		Expect(report.Apps).To(HaveLen(2))
		client := report.Apps[0]
		Expect(client.Name).To(Equal("client"))
		Expect(client.Type).To(Equal(AppUDPEchoClient))
		Expect(client.Sent).To(Equal(uint64(3)))
		Expect(client.Received).To(Equal(uint64(3)))
		Expect(client.RTTMean).To(Equal(echoRTT))
		Expect(client.RTTMedian).To(Equal(echoRTT))
		Expect(client.RTTStdDev).To(BeZero())
		Expect(report.Apps[1].Name).To(Equal("server"))

		Expect(report.Contexts).To(ContainElement(
			HaveField("Name", "router")))
	})

	It("should honor a new stop time", func() {
		runner.SetStopTime(2500 * sim.MilliSecond)

		report, err := runner.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(report.FinalTime).To(Equal(2*sim.Second + echoRTT))
		Expect(report.Pending).To(Equal(1))
		Expect(report.Apps[0].Sent).To(Equal(uint64(2)))
	})

	It("should record the events", func() {
		_, err := runner.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Terminate()).To(Succeed())

		reader, err := datarecording.NewReader(outputFile + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		n, err := reader.CountRows(context.Background(), tracing.EventTable)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(16))

		n, err = reader.CountRows(context.Background(), datarecording.ExecInfoTable)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">", 5))
	})

	It("should print the report", func() {
		report, err := runner.Run()
		Expect(err).NotTo(HaveOccurred())

		buf := new(bytes.Buffer)
		Expect(report.Print(buf)).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("Scenario:   echo"))
		Expect(buf.String()).To(ContainSubstring("RTT MEAN"))
		Expect(buf.String()).To(ContainSubstring("udp-echo-client"))
	})

	It("should draw the same on/off periods in every runner", func() {
		sent := func() uint64 {
			cfg, err := Load(filepath.Join("testdata", "dumbbell.yaml"))
			Expect(err).NotTo(HaveOccurred())

			other := simulation.MakeBuilder().
				WithoutMonitoring().
				WithoutRecording().
				Build()
			defer other.Terminate()

			r, err := NewRunner(cfg, other)
			Expect(err).NotTo(HaveOccurred())

			report, err := r.Run()
			Expect(err).NotTo(HaveOccurred())

			total := uint64(0)
			for _, a := range report.Apps {
				total += a.Sent
			}

			return total
		}

		Expect(sent()).To(Equal(sent()))
	})

	It("should refuse a port used twice", func() {
		cfg, err := Parse([]byte(`
nodes: [{name: a}]
applications:
  - {name: x, type: sink, node: a, port: 9}
  - {name: y, type: udp-echo-server, node: a, port: 9}`))
		Expect(err).NotTo(HaveOccurred())

		other := simulation.MakeBuilder().
			WithoutMonitoring().
			WithoutRecording().
			Build()
		defer other.Terminate()

		_, err = NewRunner(cfg, other)

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("RTT summary", func() {
	It("should summarize round trip times", func() {
		mean, sd, median := rttSummary([]sim.VTime{4, 1, 2, 5})

		Expect(mean).To(Equal(sim.VTime(3)))
		Expect(sd).To(BeNumerically("~", 2, 1))
		Expect(median).To(Equal(sim.VTime(2)))
	})

	It("should handle few samples", func() {
		mean, sd, median := rttSummary(nil)
		Expect([]sim.VTime{mean, sd, median}).To(Equal([]sim.VTime{0, 0, 0}))

		mean, sd, median = rttSummary([]sim.VTime{7})
		Expect([]sim.VTime{mean, sd, median}).To(Equal([]sim.VTime{7, 0, 7}))
	})
})
