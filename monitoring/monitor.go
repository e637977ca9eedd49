// Package monitoring turns a running simulation into a web server that can be
// inspected and controlled from a browser.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/nsim/monitoring/web"
	"github.com/sarchlab/nsim/sim"
	"github.com/sarchlab/nsim/tracing"
)

// Controllable is a scheduler that the monitor can inspect and pause.
type Controllable interface {
	sim.TimeTeller

	State() sim.State
	PendingEventCount() int
	ExecutedEventCount() uint64
	Pause()
	Continue()
	IsPaused() bool
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	scheduler      Controllable
	contextCounter *tracing.ContextCounter
	portNumber     int
	openBrowser    bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open the web page once the server starts.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterScheduler registers the scheduler that runs the simulation.
func (m *Monitor) RegisterScheduler(s Controllable) {
	m.scheduler = s
}

// RegisterContextCounter registers the hook that counts events per context.
func (m *Monitor) RegisterContextCounter(c *tracing.ContextCounter) {
	m.contextCounter = c
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseScheduler)
	r.HandleFunc("/api/continue", m.continueScheduler)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/contexts", m.listContexts)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	r := m.router()
	go func() {
		err := http.Serve(listener, r)
		dieOnErr(err)
	}()

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open browser: %s\n", err)
		}
	}

	return url
}

func (m *Monitor) schedulerOr503(w http.ResponseWriter) Controllable {
	if m.scheduler == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, err := w.Write([]byte("No scheduler registered"))
		dieOnErr(err)
	}

	return m.scheduler
}

func (m *Monitor) pauseScheduler(w http.ResponseWriter, _ *http.Request) {
	s := m.schedulerOr503(w)
	if s == nil {
		return
	}

	s.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueScheduler(w http.ResponseWriter, _ *http.Request) {
	s := m.schedulerOr503(w)
	if s == nil {
		return
	}

	s.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

type nowRsp struct {
	Now      int64  `json:"now"`
	Seconds  string `json:"seconds"`
	State    string `json:"state"`
	Paused   bool   `json:"paused"`
	Pending  int    `json:"pending"`
	Executed uint64 `json:"executed"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	s := m.schedulerOr503(w)
	if s == nil {
		return
	}

	now := s.Now()
	writeJSON(w, nowRsp{
		Now:      int64(now),
		Seconds:  now.String(),
		State:    s.State().String(),
		Paused:   s.IsPaused(),
		Pending:  s.PendingEventCount(),
		Executed: s.ExecutedEventCount(),
	})
}

// schedulerStatus is read through the accessors of the scheduler, which are
// safe to call while Run dispatches events on another goroutine.
type schedulerStatus struct {
	Now      sim.VTime
	State    string
	Paused   bool
	Pending  int
	Executed uint64
	Contexts []tracing.ContextStats
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	s := m.schedulerOr503(w)
	if s == nil {
		return
	}

	st := &schedulerStatus{
		Now:      s.Now(),
		State:    s.State().String(),
		Paused:   s.IsPaused(),
		Pending:  s.PendingEventCount(),
		Executed: s.ExecutedEventCount(),
	}

	if m.contextCounter != nil {
		st.Contexts = m.contextCounter.Stats()
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(st)
	serializer.SetMaxDepth(3)

	buf := bytes.NewBuffer(nil)
	err := serializer.Serialize(buf)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) listContexts(w http.ResponseWriter, _ *http.Request) {
	if m.contextCounter == nil {
		writeJSON(w, []tracing.ContextStats{})
		return
	}

	writeJSON(w, m.contextCounter.Stats())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
