package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/duatlab/hourglass/combat"
	"github.com/duatlab/hourglass/initiative"
	"github.com/duatlab/hourglass/sand"
)

var _ = Describe("Feed", func() {
	var (
		feed   *Feed
		cancel context.CancelFunc
		server *httptest.Server
		conn   *websocket.Conn
	)

	BeforeEach(func() {
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())

		feed = NewFeed(log.New(io.Discard, "", 0))
		go feed.Run(ctx)

		router := http.NewServeMux()
		router.HandleFunc("/ws", feed.ServeWS)
		server = httptest.NewServer(router)

		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

		var err error
		conn, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
		Expect(err).ToNot(HaveOccurred())

		Eventually(feed.ClientCount).Should(Equal(1))
	})

	AfterEach(func() {
		conn.Close()
		server.Close()
		cancel()
	})

	readEvent := func() FeedEvent {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		_, payload, err := conn.ReadMessage()
		Expect(err).ToNot(HaveOccurred())

		var event FeedEvent
		Expect(json.Unmarshal(payload, &event)).To(Succeed())

		return event
	}

	It("should push broadcast events to connected clients", func() {
		feed.BroadcastEvent(FeedEvent{Type: "ActionResolved", Actor: "player"})

		event := readEvent()
		Expect(event.Type).To(Equal("ActionResolved"))
		Expect(event.Actor).To(Equal("player"))
	})

	It("should translate resolution hooks into events", func() {
		res := combat.Resolution{
			Action: &initiative.Action{
				ActorID: "enemy",
				Cost:    2,
				Kind:    initiative.KindStandard,
			},
			Outcome: combat.OutcomeResolved,
		}

		feed.Func(sand.HookCtx{
			Pos:  combat.HookPosActionResolved,
			Item: res,
		})

		event := readEvent()
		Expect(event.Actor).To(Equal("enemy"))
		Expect(event.Kind).To(Equal("standard"))
		Expect(event.Outcome).To(Equal("resolved"))
	})

	It("should announce the winner when combat ends", func() {
		feed.Func(sand.HookCtx{
			Pos:  combat.HookPosCombatEnded,
			Item: "player",
		})

		event := readEvent()
		Expect(event.Type).To(Equal("CombatEnded"))
		Expect(event.Winner).To(Equal("player"))
	})
})
