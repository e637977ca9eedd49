package scenario

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/sarchlab/nsim/sim"
)

// A Packet travels from an application on one node to a port on another.
type Packet struct {
	ID      uint64
	Src     sim.ContextID
	SrcPort int
	Dst     sim.ContextID
	DstPort int
	Size    int
	SentAt  sim.VTime
	Hops    int
	Payload any
}

// A Receiver consumes the packets delivered to a port.
type Receiver interface {
	Receive(p *Packet)
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(p *Packet)

// Receive calls f.
func (f ReceiverFunc) Receive(p *Packet) {
	f(p)
}

// A Node is a host or a router. Its ID is the scheduler context of all the
// events that happen on it.
type Node struct {
	ID   sim.ContextID
	Name string

	ports         map[int]Receiver
	nextEphemeral int
}

type link struct {
	delay sim.VTime
	rate  float64
}

// transmitTime returns the time to serialize a packet onto the link.
func (l link) transmitTime(size int) sim.VTime {
	if l.rate <= 0 || size <= 0 {
		return 0
	}

	return sim.Seconds(float64(size*8) / l.rate)
}

type linkKey struct {
	a, b sim.ContextID
}

func keyOf(a, b sim.ContextID) linkKey {
	if a > b {
		a, b = b, a
	}

	return linkKey{a, b}
}

// A Network forwards packets hop by hop along the shortest paths, measured
// by link delay. Each hop is an event scheduled in the context of the node
// that the packet reaches.
type Network struct {
	scheduler sim.EventScheduler
	logger    logrus.FieldLogger

	nodes  []*Node
	byName map[string]*Node
	links  map[linkKey]link

	graph *simple.WeightedUndirectedGraph
	trees map[sim.ContextID]path.Shortest

	nextPacketID uint64
	delivered    uint64
	dropped      uint64
}

// NewNetwork creates an empty network.
func NewNetwork(s sim.EventScheduler, logger logrus.FieldLogger) *Network {
	return &Network{
		scheduler: s,
		logger:    logger,
		byName:    make(map[string]*Node),
		links:     make(map[linkKey]link),
		graph:     simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		trees:     make(map[sim.ContextID]path.Shortest),
	}
}

// AddNode creates a node. Nodes are numbered from 0 in the order they are
// added.
func (n *Network) AddNode(name string) (*Node, error) {
	if _, ok := n.byName[name]; ok {
		return nil, fmt.Errorf("node %s already exists", name)
	}

	node := &Node{
		ID:            sim.ContextID(len(n.nodes)),
		Name:          name,
		ports:         make(map[int]Receiver),
		nextEphemeral: 49152,
	}

	n.nodes = append(n.nodes, node)
	n.byName[name] = node
	n.graph.AddNode(simple.Node(node.ID))

	return node, nil
}

// Node returns the node with the given name.
func (n *Network) Node(name string) (*Node, bool) {
	node, ok := n.byName[name]
	return node, ok
}

// Nodes returns all the nodes, ordered by ID.
func (n *Network) Nodes() []*Node {
	return n.nodes
}

func (n *Network) nodeByID(id sim.ContextID) *Node {
	if int(id) >= len(n.nodes) {
		return nil
	}

	return n.nodes[id]
}

// Connect creates a bidirectional link between two nodes. A rate of 0 means
// that the link has no serialization delay.
func (n *Network) Connect(a, b string, delay sim.VTime, rate float64) error {
	na, ok := n.byName[a]
	if !ok {
		return fmt.Errorf("unknown node %s", a)
	}

	nb, ok := n.byName[b]
	if !ok {
		return fmt.Errorf("unknown node %s", b)
	}

	if na == nb {
		return fmt.Errorf("node %s cannot link to itself", a)
	}

	n.links[keyOf(na.ID, nb.ID)] = link{delay: delay, rate: rate}
	n.graph.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(na.ID),
		T: simple.Node(nb.ID),
		W: float64(delay),
	})

	clear(n.trees)

	return nil
}

// Bind attaches a receiver to a port of a node.
func (n *Network) Bind(node *Node, port int, r Receiver) error {
	if _, ok := node.ports[port]; ok {
		return fmt.Errorf("port %d of node %s is in use", port, node.Name)
	}

	node.ports[port] = r

	return nil
}

// BindEphemeral attaches a receiver to an unused port and returns the port.
func (n *Network) BindEphemeral(node *Node, r Receiver) int {
	for {
		port := node.nextEphemeral
		node.nextEphemeral++

		if _, ok := node.ports[port]; !ok {
			node.ports[port] = r
			return port
		}
	}
}

// Route returns the nodes that a packet visits from src to dst, both
// included, and the total propagation delay.
func (n *Network) Route(src, dst sim.ContextID) ([]sim.ContextID, sim.VTime, error) {
	if n.nodeByID(src) == nil || n.nodeByID(dst) == nil {
		return nil, 0, fmt.Errorf("unknown node in route %s -> %s", src, dst)
	}

	if src == dst {
		return []sim.ContextID{src}, 0, nil
	}

	tree, ok := n.trees[src]
	if !ok {
		tree = path.DijkstraFrom(simple.Node(src), n.graph)
		n.trees[src] = tree
	}

	nodes, weight := tree.To(int64(dst))
	if len(nodes) == 0 || math.IsInf(weight, 1) {
		return nil, 0, fmt.Errorf("no route from %s to %s",
			n.nodes[src].Name, n.nodes[dst].Name)
	}

	route := make([]sim.ContextID, len(nodes))
	for i, node := range nodes {
		route[i] = sim.ContextID(node.ID())
	}

	return route, sim.VTime(weight), nil
}

// Send injects a packet at its source node. The packet reaches the
// destination after the delays of all the links on the route.
func (n *Network) Send(p *Packet) error {
	route, _, err := n.Route(p.Src, p.Dst)
	if err != nil {
		return err
	}

	n.nextPacketID++
	p.ID = n.nextPacketID
	p.SentAt = n.scheduler.Now()
	p.Hops = 0

	if len(route) == 1 {
		_, err = n.scheduler.ScheduleWithContext(p.Dst, 0, func() {
			n.deliver(p)
		})

		return err
	}

	return n.forward(p, route, 0)
}

// forward moves a packet from route[i] to route[i+1].
func (n *Network) forward(p *Packet, route []sim.ContextID, i int) error {
	l := n.links[keyOf(route[i], route[i+1])]
	delay := l.delay + l.transmitTime(p.Size)

	_, err := n.scheduler.ScheduleWithContext(route[i+1], delay, func() {
		n.arrive(p, route, i+1)
	})

	return err
}

func (n *Network) arrive(p *Packet, route []sim.ContextID, i int) {
	p.Hops++

	if i == len(route)-1 {
		n.deliver(p)
		return
	}

	err := n.forward(p, route, i)
	if err != nil {
		panic(err)
	}
}

func (n *Network) deliver(p *Packet) {
	node := n.nodes[p.Dst]

	r, ok := node.ports[p.DstPort]
	if !ok {
		n.dropped++
		n.logger.WithFields(logrus.Fields{
			"packet": p.ID,
			"node":   node.Name,
			"port":   p.DstPort,
		}).Debug("no receiver, packet dropped")

		return
	}

	n.delivered++
	r.Receive(p)
}

// Delivered returns the number of packets delivered to a receiver.
func (n *Network) Delivered() uint64 {
	return n.delivered
}

// Dropped returns the number of packets that reached a port without a
// receiver.
func (n *Network) Dropped() uint64 {
	return n.dropped
}
