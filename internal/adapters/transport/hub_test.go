package transport_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/adapters/transport"
	"github.com/okian/vigil/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func drain(m *transport.Member) []string {
	var out []string
	for {
		select {
		case f := <-m.Outbound():
			out = append(out, string(f))
		default:
			return out
		}
	}
}

func TestRoom(t *testing.T) {
	Convey("Room names carry their kind and id", t, func() {
		r := transport.ObserverRoom("m1")
		So(string(r), ShouldEqual, "observer:m1")
		So(r.Kind(), ShouldEqual, transport.KindObserver)
		So(r.ID(), ShouldEqual, "m1")
		So(transport.CandidateRoom("s1").Kind(), ShouldEqual, transport.KindCandidate)
	})
}

func TestHub(t *testing.T) {
	ctx := context.Background()

	Convey("Given a hub with two observers and a candidate", t, func() {
		h := transport.NewHub(transport.WithBuffer(4), transport.WithLogger(logger.Nop()))
		obs1, obs2, cand := h.Connect(), h.Connect(), h.Connect()
		h.Join(obs1, transport.ObserverRoom("m1"))
		h.Join(obs2, transport.ObserverRoom("m1"))
		h.Join(cand, transport.CandidateRoom("s1"))

		Convey("Publishing reaches only the room's members in order", func() {
			So(h.Publish(ctx, transport.ObserverRoom("m1"), []byte("a")), ShouldEqual, 2)
			So(h.Publish(ctx, transport.ObserverRoom("m1"), []byte("b")), ShouldEqual, 2)
			So(drain(obs1), ShouldResemble, []string{"a", "b"})
			So(drain(obs2), ShouldResemble, []string{"a", "b"})
			So(drain(cand), ShouldBeEmpty)
		})

		Convey("Publishing to an empty room delivers nothing", func() {
			So(h.Publish(ctx, transport.ObserverRoom("other"), []byte("x")), ShouldEqual, 0)
		})

		Convey("Joining another room of the same kind moves the member", func() {
			h.Join(obs1, transport.ObserverRoom("m2"))
			So(h.Members(transport.ObserverRoom("m1")), ShouldEqual, 1)
			So(h.Members(transport.ObserverRoom("m2")), ShouldEqual, 1)

			h.Join(obs1, transport.CandidateRoom("s1"))
			So(h.Rooms(obs1), ShouldHaveLength, 2)
		})

		Convey("Rejoining the same room is idempotent", func() {
			h.Join(obs1, transport.ObserverRoom("m1"))
			So(h.Members(transport.ObserverRoom("m1")), ShouldEqual, 2)
		})

		Convey("Closing a subscription twice leaves once", func() {
			sub := h.Join(cand, transport.CandidateRoom("s1"))
			sub.Close()
			sub.Close()
			So(h.Members(transport.CandidateRoom("s1")), ShouldEqual, 0)
		})

		Convey("A stale subscription does not remove a newer membership", func() {
			old := h.Join(obs1, transport.ObserverRoom("m1"))
			h.Join(obs1, transport.ObserverRoom("m2"))
			old.Close()
			So(h.Members(transport.ObserverRoom("m2")), ShouldEqual, 1)
		})

		Convey("A slow member is evicted without blocking others", func() {
			for i := 0; i < 6; i++ {
				h.Publish(ctx, transport.ObserverRoom("m1"), []byte(fmt.Sprint(i)))
				drain(obs2)
			}
			So(h.Members(transport.ObserverRoom("m1")), ShouldEqual, 1)
			select {
			case <-obs1.Done():
			default:
				So("evicted member should be done", ShouldBeEmpty)
			}
			So(drain(obs1), ShouldResemble, []string{"0", "1", "2", "3"})
		})

		Convey("Disconnect removes every membership", func() {
			h.Join(cand, transport.ObserverRoom("m1"))
			h.Disconnect(cand)
			h.Disconnect(cand)
			So(h.Members(transport.CandidateRoom("s1")), ShouldEqual, 0)
			So(h.Members(transport.ObserverRoom("m1")), ShouldEqual, 2)

			h.Join(cand, transport.CandidateRoom("s1"))
			So(h.Members(transport.CandidateRoom("s1")), ShouldEqual, 0)
		})
	})
}
