package sand

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	positions []*HookPos
	items     []interface{}
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos)
	h.items = append(h.items, ctx.Item)
}

var _ = Describe("Pool", func() {
	var (
		now  time.Time
		pool *Pool
	)

	advance := func(seconds float64) {
		now = now.Add(time.Duration(seconds * float64(time.Second)))
	}

	newPool := func(initial, capacity int, rate float64) *Pool {
		clock := NewPrecisionClock().
			WithTimeFunc(func() time.Time { return now }).
			WithMaxDeltaClamp(1e9)

		return NewPool(initial, capacity, rate).WithClock(clock)
	}

	BeforeEach(func() {
		now = time.Unix(1000, 0)
		pool = newPool(0, 6, 1.0)
	})

	Context("spending", func() {
		BeforeEach(func() {
			pool.Set(3)
		})

		It("should afford costs up to the current amount", func() {
			Expect(pool.CanAfford(0)).To(BeTrue())
			Expect(pool.CanAfford(3)).To(BeTrue())
			Expect(pool.CanAfford(4)).To(BeFalse())
			Expect(pool.CanAfford(-1)).To(BeFalse())
		})

		It("should decrement by exactly the cost", func() {
			Expect(pool.Spend(2)).To(BeTrue())
			Expect(pool.Current()).To(Equal(1))
		})

		It("should reject an unaffordable cost without mutation", func() {
			Expect(pool.Spend(4)).To(BeFalse())
			Expect(pool.Current()).To(Equal(3))
		})

		It("should reject a negative cost", func() {
			Expect(pool.Spend(-1)).To(BeFalse())
			Expect(pool.Current()).To(Equal(3))
		})

		It("should reject a cost above capacity", func() {
			pool.Set(6)
			Expect(pool.Spend(7)).To(BeFalse())
			Expect(pool.Current()).To(Equal(6))
		})
	})

	Context("regeneration", func() {
		It("should produce 3 units after 3 seconds at 1 unit/sec", func() {
			advance(3.0)
			pool.Tick(RegenContext{})

			Expect(pool.Current()).To(Equal(3))
			Expect(pool.FractionalCarry()).To(BeNumerically("~", 0.0, 1e-9))
		})

		It("should accumulate identically in many small steps", func() {
			stepped := newPool(0, 6, 1.0)
			steps := []float64{0.5, 0.25, 0.75, 0.5, 0.5, 0.5}
			for _, s := range steps {
				advance(s)
				stepped.Tick(RegenContext{})
			}

			Expect(stepped.Current()).To(Equal(3))
			Expect(stepped.FractionalCarry()).To(BeNumerically("~", 0.0, 1e-9))
		})

		It("should keep sub-unit progress in the carry", func() {
			advance(0.4)
			pool.Tick(RegenContext{})

			Expect(pool.Current()).To(Equal(0))
			Expect(pool.FractionalCarry()).To(BeNumerically("~", 0.4, 1e-9))
		})

		It("should clamp at capacity and discard the excess", func() {
			advance(100.0)
			pool.Tick(RegenContext{})

			Expect(pool.Current()).To(Equal(6))

			advance(5.0)
			pool.Tick(RegenContext{})

			Expect(pool.Current()).To(Equal(6))
		})

		It("should never leave the [0, capacity] range", func() {
			for i := 0; i < 50; i++ {
				advance(0.77)
				pool.Tick(RegenContext{})
				pool.Spend(2)
				pool.Set(pool.Current() + 1)

				Expect(pool.Current()).To(BeNumerically(">=", 0))
				Expect(pool.Current()).To(BeNumerically("<=", 6))
			}
		})
	})

	Context("dynamic rate", func() {
		It("should use the base rate for a healthy actor", func() {
			Expect(pool.DynamicRate(RegenContext{HealthFraction: 1})).
				To(BeNumerically("~", 1.0, 1e-9))
		})

		It("should treat the zero context as full health", func() {
			Expect(pool.DynamicRate(RegenContext{})).
				To(BeNumerically("~", 1.0, 1e-9))
		})

		It("should accelerate when health is low", func() {
			Expect(pool.DynamicRate(RegenContext{HealthFraction: 0.2})).
				To(BeNumerically("~", 1.5, 1e-9))
			Expect(pool.DynamicRate(RegenContext{HealthFraction: 0.5})).
				To(BeNumerically("~", 1.2, 1e-9))
		})

		It("should damp when one unit below capacity", func() {
			pool.Set(5)
			Expect(pool.DynamicRate(RegenContext{HealthFraction: 1})).
				To(BeNumerically("~", 0.5, 1e-9))
		})

		It("should compose modifiers multiplicatively", func() {
			pool.Set(5)
			rate := pool.DynamicRate(RegenContext{
				HealthFraction: 0.2,
				DivineBlessing: true,
				DivineFavor:    7,
			})

			Expect(rate).To(BeNumerically("~", 1.5*0.5*1.25*1.3, 1e-9))
		})

		It("should slow regeneration under low favor", func() {
			Expect(pool.DynamicRate(RegenContext{DivineFavor: -6})).
				To(BeNumerically("~", 0.7, 1e-9))
		})
	})

	Context("pausing", func() {
		It("should not change state while paused", func() {
			pool.PauseRegeneration()

			advance(2.0)
			pool.Tick(RegenContext{})
			advance(2.0)
			pool.Tick(RegenContext{})

			Expect(pool.Current()).To(Equal(0))
			Expect(pool.FractionalCarry()).To(BeZero())
		})

		It("should measure from the resume point after resuming", func() {
			pool.PauseRegeneration()
			advance(10.0)
			pool.ResumeRegeneration()

			advance(1.0)
			pool.Tick(RegenContext{})

			Expect(pool.Current()).To(Equal(1))
			Expect(pool.FractionalCarry()).To(BeNumerically("~", 0.0, 1e-9))
		})
	})

	Context("set and capacity", func() {
		It("should clamp direct sets to the valid range", func() {
			pool.Set(100)
			Expect(pool.Current()).To(Equal(6))

			pool.Set(-5)
			Expect(pool.Current()).To(Equal(0))
		})

		It("should grow capacity up to the ceiling", func() {
			Expect(pool.IncreaseCapacity(2)).To(BeTrue())
			Expect(pool.Capacity()).To(Equal(8))
		})

		It("should refuse to exceed the ceiling", func() {
			Expect(pool.IncreaseCapacity(3)).To(BeFalse())
			Expect(pool.Capacity()).To(Equal(6))
		})
	})

	Context("snapshot", func() {
		It("should expose state without mutation", func() {
			pool.Set(2)
			advance(0.25)
			pool.Tick(RegenContext{})

			s := pool.Snapshot()
			Expect(s.Current).To(Equal(2))
			Expect(s.Capacity).To(Equal(6))
			Expect(s.Progress).To(BeNumerically("~", 0.25, 1e-9))
			Expect(s.TimeToNextUnit).To(BeNumerically("~", 0.75, 1e-9))
			Expect(s.Paused).To(BeFalse())

			Expect(pool.Snapshot()).To(Equal(s))
		})

		It("should report zero time-to-next when full", func() {
			pool.Set(6)
			Expect(pool.Snapshot().TimeToNextUnit).To(BeZero())
		})
	})

	Context("hooks", func() {
		It("should announce sand changes", func() {
			hook := &recordingHook{}
			pool.AcceptHook(hook)

			pool.Set(3)
			pool.Spend(1)

			Expect(hook.positions).To(HaveLen(2))
			Expect(hook.positions[0]).To(BeIdenticalTo(HookPosSandChange))
			Expect(hook.items).To(Equal([]interface{}{3, 2}))
		})

		It("should announce capacity changes", func() {
			hook := &recordingHook{}
			pool.AcceptHook(hook)

			pool.IncreaseCapacity(1)

			Expect(hook.positions).To(HaveLen(1))
			Expect(hook.positions[0]).To(BeIdenticalTo(HookPosCapacityChange))
		})
	})
})
