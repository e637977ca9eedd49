package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nsim/sim"
)

var _ = Describe("ContextCounter", func() {
	var (
		s       *sim.Scheduler
		counter *ContextCounter
	)

	BeforeEach(func() {
		s = sim.NewScheduler()
		counter = NewContextCounter()
		s.AcceptHook(counter)
	})

	It("should count events per context", func() {
		counter.SetName(1, "client")
		counter.SetName(0, "server")

		for i := 1; i <= 3; i++ {
			_, err := s.ScheduleWithContext(1, sim.VTime(i), func() {})
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := s.ScheduleWithContext(0, 10, func() {})
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Schedule(12, func() {})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Run()).To(Succeed())

		Expect(counter.Count(1)).To(Equal(uint64(3)))
		Expect(counter.Count(0)).To(Equal(uint64(1)))
		Expect(counter.Count(7)).To(Equal(uint64(0)))
		Expect(counter.Total()).To(Equal(uint64(5)))

		stats := counter.Stats()
		Expect(stats).To(Equal([]ContextStats{
			{Context: 0, Name: "server", Count: 1, LastDispatch: 10},
			{Context: 1, Name: "client", Count: 3, LastDispatch: 3},
			{Context: sim.GlobalContext, Name: "global", Count: 1, LastDispatch: 12},
		}))
	})

	It("should keep names on reset", func() {
		counter.SetName(2, "router")
		_, err := s.ScheduleWithContext(2, 1, func() {})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Run()).To(Succeed())

		counter.Reset()

		Expect(counter.Total()).To(Equal(uint64(0)))
		Expect(counter.Stats()).To(Equal([]ContextStats{
			{Context: 2, Name: "router"},
		}))
	})
})
