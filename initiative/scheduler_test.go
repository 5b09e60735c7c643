package initiative

import (
	"io"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/duatlab/hourglass/sand"
)

var _ = Describe("Scheduler", func() {
	var (
		mockCtrl *gomock.Controller
		now      time.Time
		sched    *Scheduler
		pool     *sand.Pool
	)

	advance := func(seconds float64) {
		now = now.Add(time.Duration(seconds * float64(time.Second)))
	}

	newPool := func(initial, capacity int, rate float64) *sand.Pool {
		clock := sand.NewPrecisionClock().
			WithTimeFunc(func() time.Time { return now }).
			WithMaxDeltaClamp(1e9)

		return sand.NewPool(initial, capacity, rate).WithClock(clock)
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		now = time.Unix(1000, 0)
		pool = newPool(2, 6, 1.0)
		sched = NewScheduler().
			WithTimeFunc(func() time.Time { return now }).
			WithLogger(log.New(io.Discard, "", 0))
		sched.RegisterPool("player", pool)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("admission", func() {
		It("should reject an unknown actor", func() {
			_, err := sched.Propose("stranger", 1, 0, KindStandard)
			Expect(err).To(MatchError(ErrUnknownActor))
		})

		It("should reject a negative cost", func() {
			_, err := sched.Propose("player", -1, 0, KindStandard)
			Expect(err).To(MatchError(ErrInvalidCost))
		})

		It("should reject a cost above capacity", func() {
			_, err := sched.Propose("player", 10, 0, KindStandard)
			Expect(err).To(MatchError(ErrInvalidCost))
			Expect(sched.NextReady()).To(BeNil())
		})

		It("should reject when the pool cannot regenerate", func() {
			stalled := NewMockPool(mockCtrl)
			stalled.EXPECT().Capacity().Return(6).AnyTimes()
			stalled.EXPECT().CanAfford(5).Return(false)
			stalled.EXPECT().RegenerationRate().Return(0.0)
			sched.RegisterPool("stalled", stalled)

			_, err := sched.Propose("stalled", 5, 0, KindStandard)
			Expect(err).To(MatchError(ErrInvalidCost))
		})

		It("should admit an affordable action immediately", func() {
			adm, err := sched.Propose("player", 2, 0, KindStandard)
			Expect(err).ToNot(HaveOccurred())
			Expect(adm.Deferred).To(BeFalse())
			Expect(sched.NextReady()).To(BeIdenticalTo(adm.Action))
		})

		It("should always admit a zero cost immediately", func() {
			pool.Set(0)

			adm, err := sched.Propose("player", 0, 0, KindEndTurn)
			Expect(err).ToNot(HaveOccurred())
			Expect(adm.Deferred).To(BeFalse())
		})

		It("should defer an unaffordable action to a future time", func() {
			adm, err := sched.Propose("player", 3, 0, KindStandard)
			Expect(err).ToNot(HaveOccurred())
			Expect(adm.Deferred).To(BeTrue())
			Expect(adm.ReadyAt.Sub(now).Seconds()).
				To(BeNumerically("~", 1.0, 1e-9))
		})
	})

	Context("execution order", func() {
		It("should pop immediate actions by descending priority", func() {
			low, _ := sched.Propose("player", 0, 5, KindStandard)
			high, _ := sched.Propose("player", 0, 10, KindStandard)

			Expect(sched.NextReady()).To(BeIdenticalTo(high.Action))
			Expect(sched.NextReady()).To(BeIdenticalTo(low.Action))
		})

		It("should break priority ties in proposal order", func() {
			first, _ := sched.Propose("player", 0, 5, KindStandard)
			second, _ := sched.Propose("player", 0, 5, KindStandard)

			Expect(sched.NextReady()).To(BeIdenticalTo(first.Action))
			Expect(sched.NextReady()).To(BeIdenticalTo(second.Action))
		})

		It("should prefer immediate actions over due deferred ones", func() {
			deferred, _ := sched.Propose("player", 3, 10, KindStandard)

			advance(2.0)
			pool.Tick(sand.RegenContext{})

			immediate, _ := sched.Propose("player", 1, 0, KindStandard)

			Expect(sched.NextReady()).To(BeIdenticalTo(immediate.Action))
			Expect(sched.NextReady()).To(BeIdenticalTo(deferred.Action))
		})

		It("should hold a deferred action until its time arrives", func() {
			adm, _ := sched.Propose("player", 3, 0, KindStandard)

			Expect(sched.NextReady()).To(BeNil())

			advance(1.0)
			pool.Tick(sand.RegenContext{})

			Expect(sched.NextReady()).To(BeIdenticalTo(adm.Action))
		})

		It("should order deferred actions sharing a ready time by priority", func() {
			pool.Set(0)
			low, _ := sched.Propose("player", 2, 1, KindStandard)
			high, _ := sched.Propose("player", 2, 9, KindStandard)

			advance(4.0)
			pool.Tick(sand.RegenContext{})

			Expect(sched.NextReady()).To(BeIdenticalTo(high.Action))
			Expect(sched.NextReady()).To(BeIdenticalTo(low.Action))
		})
	})

	Context("re-validation on pop", func() {
		It("should re-defer an action whose sand was spent elsewhere", func() {
			first, _ := sched.Propose("player", 2, 0, KindStandard)
			contested, _ := sched.Propose("player", 3, 0, KindStandard)

			Expect(sched.NextReady()).To(BeIdenticalTo(first.Action))
			Expect(pool.Spend(first.Action.Cost)).To(BeTrue())

			advance(1.0)
			pool.Tick(sand.RegenContext{})

			Expect(sched.NextReady()).To(BeNil())
			Expect(contested.Action.Reschedules()).To(Equal(1))

			advance(2.0)
			pool.Tick(sand.RegenContext{})

			Expect(sched.NextReady()).To(BeIdenticalTo(contested.Action))
		})

		It("should drop a due action whose actor was unregistered", func() {
			sched.Propose("player", 3, 0, KindStandard)
			sched.UnregisterPool("player")

			advance(2.0)

			Expect(sched.NextReady()).To(BeNil())
			Expect(sched.Len()).To(Equal(0))
		})
	})

	Context("cancellation", func() {
		It("should remove all pending actions of one actor", func() {
			other := newPool(2, 6, 1.0)
			sched.RegisterPool("enemy", other)

			sched.Propose("player", 1, 0, KindStandard)
			sched.Propose("player", 5, 0, KindStandard)
			kept, _ := sched.Propose("enemy", 1, 0, KindStandard)

			Expect(sched.CancelForActor("player")).To(Equal(2))
			Expect(sched.PendingCount("player")).To(Equal(0))
			Expect(sched.NextReady()).To(BeIdenticalTo(kept.Action))
		})

		It("should report zero for an actor with nothing pending", func() {
			Expect(sched.CancelForActor("player")).To(Equal(0))
		})
	})
})
