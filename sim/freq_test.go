package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		Expect((1 * GHz).Period()).To(Equal(VTime(1)))
		Expect((1 * Hz).Period()).To(Equal(Second))
	})

	It("should get this tick", func() {
		f := 1 * Hz
		Expect(f.ThisTick(Second)).To(Equal(Second))
		Expect(f.ThisTick(Second + 1)).To(Equal(2 * Second))
		Expect(f.ThisTick(0)).To(Equal(VTime(0)))
	})

	It("should get the next tick", func() {
		f := 100 * MHz
		Expect(f.NextTick(102)).To(Equal(VTime(110)))
		Expect(f.NextTick(110)).To(Equal(VTime(120)))
		Expect(f.NextTick(0)).To(Equal(VTime(10)))
	})

	It("should get the time after n cycles", func() {
		f := 100 * MHz
		Expect(f.NCyclesLater(12, 100)).To(Equal(VTime(220)))
		Expect(f.NCyclesLater(12, 102)).To(Equal(VTime(230)))
	})

	It("should count cycles", func() {
		f := 1 * GHz
		Expect(f.Cycle(10)).To(Equal(uint64(10)))
		Expect(f.Cycle(Second)).To(Equal(uint64(1e9)))
	})

	It("should refuse invalid frequencies", func() {
		Expect(func() { Freq(0).Period() }).To(Panic())
		Expect(func() { (10 * GHz).Period() }).To(Panic())
	})
})
