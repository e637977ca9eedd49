package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TickScheduler", func() {
	var (
		s     *Scheduler
		ticks []VTime
		busy  int
		ts    *TickScheduler
	)

	BeforeEach(func() {
		s = NewScheduler()
		ticks = nil
		busy = 0
		ts = NewTickSchedulerWithPeriod(s, 3, 10, TickerFunc(func() bool {
			ticks = append(ticks, s.Now())
			Expect(s.CurrentContext()).To(Equal(ContextID(3)))

			if busy == 0 {
				return false
			}
			busy--

			return true
		}))
	})

	It("should tick while making progress", func() {
		busy = 2
		ts.TickNow()

		Expect(s.Run()).To(Succeed())

		Expect(ticks).To(Equal([]VTime{0, 10, 20}))
		Expect(ts.IsTicking()).To(BeFalse())
	})

	It("should tick on the next tick boundary", func() {
		mustSchedule(s.Schedule(15, func() { ts.TickLater() }))

		Expect(s.Run()).To(Succeed())

		Expect(ticks).To(Equal([]VTime{20}))
	})

	It("should align TickNow to the tick boundary", func() {
		mustSchedule(s.Schedule(15, func() { ts.TickNow() }))
		mustSchedule(s.Schedule(20, func() { ts.TickNow() }))

		Expect(s.Run()).To(Succeed())

		Expect(ticks).To(Equal([]VTime{20}))
	})

	It("should keep at most one tick pending", func() {
		ts.TickLater()
		ts.TickLater()
		ts.TickNow()

		at, ok := ts.NextTickTime()
		Expect(ok).To(BeTrue())
		Expect(at).To(Equal(VTime(0)))
		Expect(s.PendingEventCount()).To(Equal(1))

		Expect(s.Run()).To(Succeed())
		Expect(ticks).To(Equal([]VTime{0}))
	})

	It("should stop ticking", func() {
		busy = 100
		ts.TickNow()
		mustSchedule(s.Schedule(25, func() { ts.Stop() }))

		Expect(s.Run()).To(Succeed())

		Expect(ticks).To(Equal([]VTime{0, 10, 20}))
		_, ok := ts.NextTickTime()
		Expect(ok).To(BeFalse())
	})

	It("should stop when asked from inside a tick", func() {
		ts = NewTickScheduler(s, 3, 100*MHz, nil)
		ts.ticker = TickerFunc(func() bool {
			ticks = append(ticks, s.Now())
			ts.Stop()

			return true
		})
		Expect(ts.Period()).To(Equal(VTime(10)))

		ts.TickNow()
		Expect(s.Run()).To(Succeed())

		Expect(ticks).To(Equal([]VTime{0}))
	})

	It("should refuse a non-positive period", func() {
		Expect(func() {
			NewTickSchedulerWithPeriod(s, 0, 0, nil)
		}).To(Panic())
	})
})
