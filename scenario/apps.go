package scenario

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/nsim/sim"
)

// An Application runs on a node and exchanges packets with other nodes.
// Start and Stop are called by events in the context of the node.
type Application interface {
	Name() string
	Node() *Node
	Start()
	Stop()
	Stats() AppStats
}

// AppStats summarizes the traffic of an application.
type AppStats struct {
	Sent          uint64
	Received      uint64
	BytesReceived uint64
	RTTs          []sim.VTime
}

const defaultPacketSize = 1024

type appBase struct {
	name    string
	node    *Node
	network *Network
	sched   sim.EventScheduler
	logger  logrus.FieldLogger
	running bool
	stats   AppStats
}

func newAppBase(
	name string,
	node *Node,
	network *Network,
	logger logrus.FieldLogger,
) appBase {
	return appBase{
		name:    name,
		node:    node,
		network: network,
		sched:   network.scheduler,
		logger: logger.WithFields(logrus.Fields{
			"app":  name,
			"node": node.Name,
		}),
	}
}

func (a *appBase) Name() string {
	return a.name
}

func (a *appBase) Node() *Node {
	return a.node
}

func (a *appBase) Stats() AppStats {
	s := a.stats
	s.RTTs = append([]sim.VTime(nil), a.stats.RTTs...)

	return s
}

func (a *appBase) send(p *Packet) {
	err := a.network.Send(p)
	if err != nil {
		a.logger.WithError(err).Warn("send failed")
		return
	}

	a.stats.Sent++
}

func (a *appBase) count(p *Packet) {
	a.stats.Received++
	a.stats.BytesReceived += uint64(p.Size)
}

// echoPayload travels to the echo server and back.
type echoPayload struct {
	Seq    int
	SentAt sim.VTime
}

// An EchoServer sends every packet it receives back to its sender.
type EchoServer struct {
	appBase
	port int
}

// NewEchoServer creates an echo server that listens on the given port.
func NewEchoServer(
	name string,
	node *Node,
	port int,
	network *Network,
	logger logrus.FieldLogger,
) (*EchoServer, error) {
	s := &EchoServer{
		appBase: newAppBase(name, node, network, logger),
		port:    port,
	}

	err := network.Bind(node, port, s)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start makes the server answer.
func (s *EchoServer) Start() {
	s.running = true
}

// Stop makes the server ignore incoming packets.
func (s *EchoServer) Stop() {
	s.running = false
}

// Receive echoes the packet.
func (s *EchoServer) Receive(p *Packet) {
	if !s.running {
		return
	}

	s.count(p)
	s.logger.WithFields(logrus.Fields{
		"packet": p.ID,
		"from":   s.network.nodes[p.Src].Name,
		"time":   s.sched.Now(),
	}).Debug("echo")

	s.send(&Packet{
		Src:     s.node.ID,
		SrcPort: s.port,
		Dst:     p.Src,
		DstPort: p.SrcPort,
		Size:    p.Size,
		Payload: p.Payload,
	})
}

// An EchoClient sends packets to an echo server at a fixed interval and
// measures the round trip times.
type EchoClient struct {
	appBase

	port       int
	remote     *Node
	remotePort int
	size       int
	interval   sim.VTime
	maxPackets int

	next sim.EventHandle
}

// NewEchoClient creates an echo client. A maxPackets of 0 means no limit.
func NewEchoClient(
	name string,
	node, remote *Node,
	remotePort, size int,
	interval sim.VTime,
	maxPackets int,
	network *Network,
	logger logrus.FieldLogger,
) *EchoClient {
	if size <= 0 {
		size = defaultPacketSize
	}

	c := &EchoClient{
		appBase:    newAppBase(name, node, network, logger),
		remote:     remote,
		remotePort: remotePort,
		size:       size,
		interval:   interval,
		maxPackets: maxPackets,
	}
	c.port = network.BindEphemeral(node, c)

	return c
}

// Start sends the first packet.
func (c *EchoClient) Start() {
	c.running = true
	c.sendNext()
}

// Stop cancels the next transmission.
func (c *EchoClient) Stop() {
	c.running = false

	if c.next.IsRunning() {
		c.sched.Cancel(c.next)
	}
}

func (c *EchoClient) sendNext() {
	if !c.running {
		return
	}

	if c.maxPackets > 0 && int(c.stats.Sent) >= c.maxPackets {
		return
	}

	c.send(&Packet{
		Src:     c.node.ID,
		SrcPort: c.port,
		Dst:     c.remote.ID,
		DstPort: c.remotePort,
		Size:    c.size,
		Payload: echoPayload{Seq: int(c.stats.Sent), SentAt: c.sched.Now()},
	})

	if c.maxPackets > 0 && int(c.stats.Sent) >= c.maxPackets {
		return
	}

	h, err := c.sched.Schedule(c.interval, c.sendNext)
	if err != nil {
		c.logger.WithError(err).Warn("cannot schedule the next packet")
		return
	}

	c.next = h
}

// Receive records the round trip time of an echoed packet.
func (c *EchoClient) Receive(p *Packet) {
	c.count(p)

	payload, ok := p.Payload.(echoPayload)
	if !ok {
		return
	}

	rtt := c.sched.Now() - payload.SentAt
	c.stats.RTTs = append(c.stats.RTTs, rtt)

	c.logger.WithFields(logrus.Fields{
		"seq": payload.Seq,
		"rtt": rtt,
	}).Debug("echo received")
}

// An OnOff application alternates between on periods, where it sends
// packets at a constant rate, and silent off periods. The lengths of the
// periods are exponentially distributed.
type OnOff struct {
	appBase

	port       int
	remote     *Node
	remotePort int
	size       int
	interval   sim.VTime
	onMean     sim.VTime
	offMean    sim.VTime
	rng        *rngstream.RngStream

	onEnd sim.VTime
	next  sim.EventHandle
}

// NewOnOff creates an on/off source sending at rate bit/s while on. The
// lengths of the periods are drawn from rng.
func NewOnOff(
	name string,
	node, remote *Node,
	remotePort, size int,
	rate float64,
	onMean, offMean sim.VTime,
	rng *rngstream.RngStream,
	network *Network,
	logger logrus.FieldLogger,
) *OnOff {
	if size <= 0 {
		size = defaultPacketSize
	}

	interval := sim.Seconds(float64(size*8) / rate)
	if interval <= 0 {
		interval = 1
	}

	a := &OnOff{
		appBase:    newAppBase(name, node, network, logger),
		remote:     remote,
		remotePort: remotePort,
		size:       size,
		interval:   interval,
		onMean:     onMean,
		offMean:    offMean,
		rng:        rng,
	}
	a.port = network.BindEphemeral(node, ReceiverFunc(a.count))

	return a
}

// Start begins with an on period.
func (a *OnOff) Start() {
	a.running = true
	a.turnOn()
}

// Stop cancels whatever the application waits for.
func (a *OnOff) Stop() {
	a.running = false

	if a.next.IsRunning() {
		a.sched.Cancel(a.next)
	}
}

// exponential draws a duration with the given mean.
func (a *OnOff) exponential(mean sim.VTime) sim.VTime {
	u := a.rng.RandU01()
	return sim.VTime(math.Round(-float64(mean) * math.Log(1-u)))
}

func (a *OnOff) turnOn() {
	if !a.running {
		return
	}

	a.onEnd = a.sched.Now() + a.exponential(a.onMean)
	a.sendNext()
}

func (a *OnOff) turnOff() {
	if !a.running {
		return
	}

	a.schedule(a.exponential(a.offMean), a.turnOn)
}

func (a *OnOff) sendNext() {
	if !a.running {
		return
	}

	now := a.sched.Now()
	if now >= a.onEnd {
		a.turnOff()
		return
	}

	a.send(&Packet{
		Src:     a.node.ID,
		SrcPort: a.port,
		Dst:     a.remote.ID,
		DstPort: a.remotePort,
		Size:    a.size,
	})

	if now+a.interval >= a.onEnd {
		a.schedule(a.onEnd-now, a.turnOff)
		return
	}

	a.schedule(a.interval, a.sendNext)
}

func (a *OnOff) schedule(delay sim.VTime, cb sim.Callback) {
	h, err := a.sched.Schedule(delay, cb)
	if err != nil {
		a.logger.WithError(err).Warn("cannot schedule")
		return
	}

	a.next = h
}

// A Sink counts the packets that arrive at a port.
type Sink struct {
	appBase
}

// NewSink creates a sink listening on the given port.
func NewSink(
	name string,
	node *Node,
	port int,
	network *Network,
	logger logrus.FieldLogger,
) (*Sink, error) {
	s := &Sink{appBase: newAppBase(name, node, network, logger)}

	err := network.Bind(node, port, s)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start makes the sink count packets.
func (s *Sink) Start() {
	s.running = true
}

// Stop makes the sink ignore packets.
func (s *Sink) Stop() {
	s.running = false
}

// Receive counts the packet.
func (s *Sink) Receive(p *Packet) {
	if s.running {
		s.count(p)
	}
}

// NewApplication creates the application that a config describes and
// installs it on its node. Applications that need random numbers take a
// stream from streams.
func NewApplication(
	cfg AppConfig,
	network *Network,
	streams *Streams,
	logger logrus.FieldLogger,
) (Application, error) {
	node, ok := network.Node(cfg.Node)
	if !ok {
		return nil, fmt.Errorf("unknown node %q", cfg.Node)
	}

	switch cfg.Type {
	case AppUDPEchoServer:
		server, err := NewEchoServer(cfg.Name, node, cfg.Port, network, logger)
		if err != nil {
			return nil, err
		}

		return server, nil
	case AppSink:
		sink, err := NewSink(cfg.Name, node, cfg.Port, network, logger)
		if err != nil {
			return nil, err
		}

		return sink, nil
	}

	remote, ok := network.Node(cfg.Remote)
	if !ok {
		return nil, fmt.Errorf("unknown node %q", cfg.Remote)
	}

	switch cfg.Type {
	case AppUDPEchoClient:
		interval, err := sim.ParseTime(cfg.Interval)
		if err != nil {
			return nil, err
		}

		return NewEchoClient(cfg.Name, node, remote, cfg.RemotePort,
			cfg.PacketSize, interval, cfg.MaxPackets, network, logger), nil
	case AppOnOff:
		return newOnOffFromConfig(cfg, node, remote, network, streams, logger)
	}

	return nil, fmt.Errorf("unknown application type %q", cfg.Type)
}

func newOnOffFromConfig(
	cfg AppConfig,
	node, remote *Node,
	network *Network,
	streams *Streams,
	logger logrus.FieldLogger,
) (Application, error) {
	rate, err := ParseDataRate(cfg.DataRate)
	if err != nil {
		return nil, err
	}

	if rate <= 0 {
		return nil, fmt.Errorf("data rate %s is not positive", cfg.DataRate)
	}

	onTime, err := sim.ParseTime(cfg.OnTime)
	if err != nil {
		return nil, err
	}

	offTime, err := sim.ParseTime(cfg.OffTime)
	if err != nil {
		return nil, err
	}

	return NewOnOff(cfg.Name, node, remote, cfg.RemotePort, cfg.PacketSize,
		rate, onTime, offTime, streams.New(cfg.Name), network, logger), nil
}

// Install schedules the start of an application and, if stop is not zero,
// its end. Both run in the context of the node of the application.
func Install(
	s sim.EventScheduler,
	app Application,
	start, stop sim.VTime,
) error {
	ctx := app.Node().ID

	_, err := s.ScheduleAt(start, ctx, app.Start)
	if err != nil {
		return fmt.Errorf("starting %s: %w", app.Name(), err)
	}

	if stop == 0 {
		return nil
	}

	_, err = s.ScheduleAt(stop, ctx, app.Stop)
	if err != nil {
		return fmt.Errorf("stopping %s: %w", app.Name(), err)
	}

	return nil
}
