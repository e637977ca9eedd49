// Package scenario describes small network simulations in YAML files and runs
// them on the scheduler. Nodes become scheduler contexts, links add delay, and
// applications generate and consume packets.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/nsim/sim"
)

// Application types.
const (
	AppUDPEchoServer = "udp-echo-server"
	AppUDPEchoClient = "udp-echo-client"
	AppOnOff         = "onoff"
	AppSink          = "sink"
)

// Config is the content of a scenario file.
type Config struct {
	Name         string       `yaml:"name"`
	Stop         string       `yaml:"stop"`
	Seed         uint64       `yaml:"seed,omitempty"`
	Nodes        []NodeConfig `yaml:"nodes"`
	Links        []LinkConfig `yaml:"links"`
	Applications []AppConfig  `yaml:"applications"`
}

// NodeConfig declares a node.
type NodeConfig struct {
	Name string `yaml:"name"`
}

// LinkConfig connects two nodes. DataRate is optional; without it, packets
// only suffer the propagation delay.
type LinkConfig struct {
	A        string `yaml:"a"`
	B        string `yaml:"b"`
	Delay    string `yaml:"delay"`
	DataRate string `yaml:"data_rate,omitempty"`
}

// AppConfig declares an application installed on a node.
type AppConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Node string `yaml:"node"`
	Port int    `yaml:"port,omitempty"`

	Remote     string `yaml:"remote,omitempty"`
	RemotePort int    `yaml:"remote_port,omitempty"`

	Start string `yaml:"start,omitempty"`
	Stop  string `yaml:"stop,omitempty"`

	PacketSize int    `yaml:"packet_size,omitempty"`
	Interval   string `yaml:"interval,omitempty"`
	MaxPackets int    `yaml:"max_packets,omitempty"`

	DataRate string `yaml:"data_rate,omitempty"`
	OnTime   string `yaml:"on_time,omitempty"`
	OffTime  string `yaml:"off_time,omitempty"`
}

// Load reads and validates a scenario file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	return cfg, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ErrInvalidConfig is matched by all the validation errors.
var ErrInvalidConfig = errors.New("invalid scenario")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks that the scenario is complete and consistent.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return invalid("no nodes")
	}

	if _, err := optionalTime(c.Stop); err != nil {
		return invalid("stop: %s", err)
	}

	if c.Seed > MaxSeed {
		return invalid("seed %d is larger than %d", c.Seed, MaxSeed)
	}

	nodes := make(map[string]bool)
	for i, n := range c.Nodes {
		if n.Name == "" {
			return invalid("node %d has no name", i)
		}

		if nodes[n.Name] {
			return invalid("duplicate node %s", n.Name)
		}
		nodes[n.Name] = true
	}

	for i, l := range c.Links {
		if err := l.validate(nodes); err != nil {
			return invalid("link %d: %s", i, err)
		}
	}

	names := make(map[string]bool)
	for i, a := range c.Applications {
		if err := a.validate(nodes); err != nil {
			return invalid("application %d (%s): %s", i, a.Name, err)
		}

		if names[a.Name] {
			return invalid("duplicate application %s", a.Name)
		}
		names[a.Name] = true
	}

	return nil
}

func (l LinkConfig) validate(nodes map[string]bool) error {
	if !nodes[l.A] {
		return fmt.Errorf("unknown node %q", l.A)
	}

	if !nodes[l.B] {
		return fmt.Errorf("unknown node %q", l.B)
	}

	if l.A == l.B {
		return fmt.Errorf("node %s is linked to itself", l.A)
	}

	if _, err := l.DelayTime(); err != nil {
		return err
	}

	if _, err := l.Rate(); err != nil {
		return err
	}

	return nil
}

// DelayTime returns the propagation delay of the link.
func (l LinkConfig) DelayTime() (sim.VTime, error) {
	d, err := sim.ParseTime(l.Delay)
	if err != nil {
		return 0, fmt.Errorf("delay: %w", err)
	}

	if d < 0 {
		return 0, fmt.Errorf("delay %s is negative", l.Delay)
	}

	return d, nil
}

// Rate returns the data rate of the link in bit/s, or 0 if not set.
func (l LinkConfig) Rate() (float64, error) {
	if l.DataRate == "" {
		return 0, nil
	}

	return ParseDataRate(l.DataRate)
}

func (a AppConfig) validate(nodes map[string]bool) error {
	if a.Name == "" {
		return errors.New("no name")
	}

	if !nodes[a.Node] {
		return fmt.Errorf("unknown node %q", a.Node)
	}

	start, err := optionalTime(a.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	stop, err := optionalTime(a.Stop)
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}

	if a.Stop != "" && stop < start {
		return fmt.Errorf("stops at %s before it starts at %s", stop, start)
	}

	if a.Port < 0 || a.Port > 65535 {
		return fmt.Errorf("invalid port %d", a.Port)
	}

	switch a.Type {
	case AppUDPEchoServer, AppSink:
		if a.Port == 0 {
			return errors.New("no port")
		}
	case AppUDPEchoClient:
		return a.validateClient(nodes)
	case AppOnOff:
		return a.validateOnOff(nodes)
	default:
		return fmt.Errorf("unknown type %q", a.Type)
	}

	return nil
}

func (a AppConfig) validateRemote(nodes map[string]bool) error {
	if !nodes[a.Remote] {
		return fmt.Errorf("unknown remote node %q", a.Remote)
	}

	if a.RemotePort <= 0 || a.RemotePort > 65535 {
		return fmt.Errorf("invalid remote port %d", a.RemotePort)
	}

	if a.PacketSize < 0 {
		return fmt.Errorf("invalid packet size %d", a.PacketSize)
	}

	return nil
}

func (a AppConfig) validateClient(nodes map[string]bool) error {
	if err := a.validateRemote(nodes); err != nil {
		return err
	}

	interval, err := sim.ParseTime(a.Interval)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}

	if interval <= 0 {
		return fmt.Errorf("interval %s is not positive", a.Interval)
	}

	if a.MaxPackets < 0 {
		return fmt.Errorf("invalid max packets %d", a.MaxPackets)
	}

	return nil
}

func (a AppConfig) validateOnOff(nodes map[string]bool) error {
	if err := a.validateRemote(nodes); err != nil {
		return err
	}

	rate, err := ParseDataRate(a.DataRate)
	if err != nil {
		return err
	}

	if rate <= 0 {
		return errors.New("data rate must be positive")
	}

	for _, t := range []string{a.OnTime, a.OffTime} {
		d, err := sim.ParseTime(t)
		if err != nil {
			return err
		}

		if d <= 0 {
			return fmt.Errorf("on/off time %s is not positive", t)
		}
	}

	return nil
}

func optionalTime(s string) (sim.VTime, error) {
	if s == "" {
		return 0, nil
	}

	t, err := sim.ParseTime(s)
	if err != nil {
		return 0, err
	}

	if t < 0 {
		return 0, fmt.Errorf("time %s is negative", s)
	}

	return t, nil
}

var rateUnits = []struct {
	suffix string
	scale  float64
}{
	{"Gbps", 1e9},
	{"Mbps", 1e6},
	{"kbps", 1e3},
	{"Kbps", 1e3},
	{"bps", 1},
}

// ParseDataRate parses a data rate such as "5Mbps" into bit/s.
func ParseDataRate(s string) (float64, error) {
	for _, u := range rateUnits {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSuffix(s, u.suffix), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid data rate %q: %w", s, err)
		}

		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, fmt.Errorf("invalid data rate %q", s)
		}

		return v * u.scale, nil
	}

	return 0, fmt.Errorf("invalid data rate %q: unknown unit", s)
}
