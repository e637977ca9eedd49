package sim

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("VTime", func() {
	It("should convert from units", func() {
		Expect(Seconds(1.5)).To(Equal(VTime(1_500_000_000)))
		Expect(MilliSeconds(20)).To(Equal(20 * MilliSecond))
		Expect(MicroSeconds(0.5)).To(Equal(VTime(500)))
		Expect(NanoSeconds(7)).To(Equal(VTime(7)))
	})

	It("should saturate on overflow", func() {
		Expect(Seconds(1e30)).To(Equal(MaxTime))
		Expect(func() { Seconds(math.NaN()) }).To(Panic())
	})

	It("should convert to other units", func() {
		Expect((2500 * MilliSecond).Seconds()).To(BeNumerically("~", 2.5, 1e-12))
		Expect((3 * MicroSecond).Duration()).To(Equal(3 * time.Microsecond))
	})

	It("should print with nanosecond precision", func() {
		Expect((2 * Second).String()).To(Equal("+2.000000000s"))
		Expect(VTime(1_000_000_001).String()).To(Equal("+1.000000001s"))
		Expect(VTime(-5).String()).To(Equal("-0.000000005s"))
	})

	It("should parse durations", func() {
		t, err := ParseTime("1.5s")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(Seconds(1.5)))

		t, err = ParseTime("20ms")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(20 * MilliSecond))

		_, err = ParseTime("soon")
		Expect(err).To(HaveOccurred())
	})
})
