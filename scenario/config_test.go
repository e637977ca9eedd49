package scenario

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nsim/sim"
)

const echoScenario = `
name: echo
stop: 10s
nodes:
  - name: client
  - name: router
  - name: server
links:
  - {a: client, b: router, delay: 2ms, data_rate: 5Mbps}
  - {a: router, b: server, delay: 3ms}
applications:
  - name: server
    type: udp-echo-server
    node: server
    port: 9
  - name: client
    type: udp-echo-client
    node: client
    remote: server
    remote_port: 9
    interval: 1s
    max_packets: 3
    start: 1s
`

var _ = Describe("Config", func() {
	It("should parse a scenario", func() {
		cfg, err := Parse([]byte(echoScenario))

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Name).To(Equal("echo"))
		Expect(cfg.Nodes).To(HaveLen(3))
		Expect(cfg.Links).To(HaveLen(2))
		Expect(cfg.Applications[1].MaxPackets).To(Equal(3))

		delay, err := cfg.Links[0].DelayTime()
		Expect(err).NotTo(HaveOccurred())
		Expect(delay).To(Equal(2 * sim.MilliSecond))

		rate, err := cfg.Links[0].Rate()
		Expect(err).NotTo(HaveOccurred())
		Expect(rate).To(Equal(5e6))

		rate, err = cfg.Links[1].Rate()
		Expect(err).NotTo(HaveOccurred())
		Expect(rate).To(BeZero())
	})

	It("should load a scenario from a file", func() {
		filename := filepath.Join(GinkgoT().TempDir(), "echo.yaml")
		Expect(os.WriteFile(filename, []byte(echoScenario), 0o644)).To(Succeed())

		cfg, err := Load(filename)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Name).To(Equal("echo"))
	})

	It("should report a missing file", func() {
		_, err := Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))

		Expect(err).To(HaveOccurred())
	})

	It("should load the sample scenario", func() {
		cfg, err := Load(filepath.Join("testdata", "dumbbell.yaml"))

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Applications).NotTo(BeEmpty())
	})

	DescribeTable("invalid scenarios",
		func(content string) {
			_, err := Parse([]byte(content))

			Expect(err).To(MatchError(ErrInvalidConfig))
		},
		Entry("no nodes", `name: x`),
		Entry("duplicate nodes", `
nodes: [{name: a}, {name: a}]`),
		Entry("unnamed node", `
nodes: [{name: ""}]`),
		Entry("bad stop", `
stop: soon
nodes: [{name: a}]`),
		Entry("unknown link end", `
nodes: [{name: a}]
links: [{a: a, b: b, delay: 1ms}]`),
		Entry("self link", `
nodes: [{name: a}]
links: [{a: a, b: a, delay: 1ms}]`),
		Entry("negative delay", `
nodes: [{name: a}, {name: b}]
links: [{a: a, b: b, delay: -1ms}]`),
		Entry("bad data rate", `
nodes: [{name: a}, {name: b}]
links: [{a: a, b: b, delay: 1ms, data_rate: fast}]`),
		Entry("NaN data rate", `
nodes: [{name: a}, {name: b}]
links: [{a: a, b: b, delay: 1ms, data_rate: NaNMbps}]`),
		Entry("infinite data rate", `
nodes: [{name: a}, {name: b}]
links: [{a: a, b: b, delay: 1ms, data_rate: +InfGbps}]`),
		Entry("onoff with NaN rate", `
nodes: [{name: a}, {name: b}]
applications: [{name: x, type: onoff, node: a, remote: b, remote_port: 9, data_rate: NaNbps, on_time: 1s, off_time: 1s}]`),
		Entry("unknown app type", `
nodes: [{name: a}]
applications: [{name: x, type: tcp, node: a}]`),
		Entry("server without port", `
nodes: [{name: a}]
applications: [{name: x, type: sink, node: a}]`),
		Entry("client without interval", `
nodes: [{name: a}, {name: b}]
applications: [{name: x, type: udp-echo-client, node: a, remote: b, remote_port: 9}]`),
		Entry("client with unknown remote", `
nodes: [{name: a}]
applications: [{name: x, type: udp-echo-client, node: a, remote: b, remote_port: 9, interval: 1s}]`),
		Entry("onoff without rate", `
nodes: [{name: a}, {name: b}]
applications: [{name: x, type: onoff, node: a, remote: b, remote_port: 9, on_time: 1s, off_time: 1s}]`),
		Entry("stop before start", `
nodes: [{name: a}]
applications: [{name: x, type: sink, node: a, port: 9, start: 2s, stop: 1s}]`),
		Entry("seed too large", `
seed: 4294944443
nodes: [{name: a}]`),
		Entry("duplicate apps", `
nodes: [{name: a}]
applications:
  - {name: x, type: sink, node: a, port: 9}
  - {name: x, type: sink, node: a, port: 10}`),
	)

	DescribeTable("data rates",
		func(s string, expected float64) {
			rate, err := ParseDataRate(s)

			Expect(err).NotTo(HaveOccurred())
			Expect(rate).To(Equal(expected))
		},
		Entry("bit/s", "800bps", 800.0),
		Entry("kbit/s", "64kbps", 64e3),
		Entry("Mbit/s", "1.5Mbps", 1.5e6),
		Entry("Gbit/s", "10Gbps", 10e9),
	)

	It("should refuse a data rate without unit", func() {
		_, err := ParseDataRate("100")

		Expect(err).To(HaveOccurred())
	})

	DescribeTable("non-finite data rates",
		func(s string) {
			_, err := ParseDataRate(s)

			Expect(err).To(HaveOccurred())
		},
		Entry("NaN", "NaNMbps"),
		Entry("infinity", "+InfGbps"),
		Entry("negative infinity", "-Infkbps"),
	)
})
