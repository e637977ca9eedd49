package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nsim/sim"
	"github.com/sarchlab/nsim/tracing"
)

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		s       *sim.Scheduler
		counter *tracing.ContextCounter
		router  http.Handler
	)

	BeforeEach(func() {
		s = sim.NewScheduler()
		counter = tracing.NewContextCounter()
		s.AcceptHook(counter)

		m = NewMonitor()
		m.RegisterScheduler(s)
		m.RegisterContextCounter(counter)
		router = m.router()
	})

	It("should ignore privileged port numbers", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should report the current time", func() {
		_, err := s.Schedule(2*sim.Second, func() {})
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Schedule(3*sim.Second, func() {})
		Expect(err).NotTo(HaveOccurred())
		s.StopAt(2 * sim.Second)
		Expect(s.Run()).To(Succeed())

		rec := get(router, "/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))

		rsp := nowRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Now).To(Equal(int64(2 * sim.Second)))
		Expect(rsp.Seconds).To(Equal("+2.000000000s"))
		Expect(rsp.State).To(Equal("Idle"))
		Expect(rsp.Pending).To(Equal(1))
		Expect(rsp.Executed).To(Equal(uint64(1)))
	})

	It("should pause and continue the scheduler", func() {
		Expect(get(router, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(s.IsPaused()).To(BeTrue())

		Expect(get(router, "/api/continue").Code).To(Equal(http.StatusOK))
		Expect(s.IsPaused()).To(BeFalse())
	})

	It("should fail without a scheduler", func() {
		router = NewMonitor().router()

		Expect(get(router, "/api/now").Code).
			To(Equal(http.StatusServiceUnavailable))
	})

	It("should list contexts", func() {
		counter.SetName(1, "n1")
		_, err := s.ScheduleWithContext(1, 5, func() {})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Run()).To(Succeed())

		rec := get(router, "/api/contexts")

		var stats []tracing.ContextStats
		Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats).To(Equal([]tracing.ContextStats{
			{Context: 1, Name: "n1", Count: 1, LastDispatch: 5},
		}))
	})

	It("should dump the scheduler status", func() {
		rec := get(router, "/api/status")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should dump the status while the scheduler runs", func() {
		var tick func()
		tick = func() {
			if s.Now() < 20000 {
				_, _ = s.Schedule(1, tick)
			}
		}
		_, err := s.ScheduleWithContext(1, 0, tick)
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error)
		go func() { done <- s.Run() }()

		for i := 0; i < 20; i++ {
			Expect(get(router, "/api/status").Code).To(Equal(http.StatusOK))
		}

		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		Expect(s.IsPaused()).To(BeFalse())
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("run", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)
		done := m.CreateProgressBar("done", 1)
		m.CompleteProgressBar(done)

		rec := get(router, "/api/progress")

		var bars []ProgressBarStatus
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("run"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))
	})

	It("should report resources", func() {
		rec := get(router, "/api/resource")

		rsp := resourceRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		rec := get(router, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should follow the virtual time with a progress bar", func() {
		p := m.NewSimTimeProgress("sim time", 10*sim.MilliSecond, sim.MilliSecond)
		s.AcceptHook(p)

		_, err := s.Schedule(4*sim.MilliSecond, func() {})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Run()).To(Succeed())

		status := p.Bar.Status()
		Expect(status.Total).To(Equal(uint64(10)))
		Expect(status.Finished).To(Equal(uint64(4)))
	})

	It("should start a server", func() {
		url := m.StartServer()

		var rsp *http.Response
		Eventually(func() error {
			var err error
			rsp, err = http.Get(url + "/api/now")
			return err
		}, time.Second).Should(Succeed())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
