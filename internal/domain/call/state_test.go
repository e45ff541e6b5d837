package call_test

import (
	"errors"
	"testing"

	"github.com/okian/vigil/internal/domain/call"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMachine(t *testing.T) {
	Convey("Given a new channel machine", t, func() {
		m := call.NewMachine()
		So(m.State(), ShouldEqual, call.StateIdle)

		Convey("When it walks the happy path", func() {
			So(m.Transition(call.StateWaiting), ShouldBeNil)
			So(m.Transition(call.StateConnecting), ShouldBeNil)
			So(m.Transition(call.StateConnected), ShouldBeNil)
			So(m.Transition(call.StateEnded), ShouldBeNil)

			Convey("Then it is terminal until reset", func() {
				err := m.Transition(call.StateConnecting)
				So(errors.Is(err, call.ErrInvalidTransition), ShouldBeTrue)
				So(m.Reset(), ShouldBeTrue)
				So(m.State(), ShouldEqual, call.StateIdle)
			})
		})

		Convey("When a step is skipped", func() {
			err := m.Transition(call.StateConnected)
			So(errors.Is(err, call.ErrInvalidTransition), ShouldBeTrue)
			So(m.State(), ShouldEqual, call.StateIdle)
		})

		Convey("Then a live channel cannot be reset", func() {
			So(m.Transition(call.StateWaiting), ShouldBeNil)
			So(m.Reset(), ShouldBeFalse)
			So(m.State(), ShouldEqual, call.StateWaiting)
		})
	})

	Convey("Given the transition table", t, func() {
		So(call.StateWaiting.CanTransition(call.StateEnded), ShouldBeTrue)
		So(call.StateConnecting.CanTransition(call.StateError), ShouldBeTrue)
		So(call.StateConnected.CanTransition(call.StateWaiting), ShouldBeFalse)
		So(call.StateError.CanTransition(call.StateEnded), ShouldBeFalse)
		So(call.RoleCandidate.Peer(), ShouldEqual, call.RoleObserver)
		So(call.RoleObserver.Peer(), ShouldEqual, call.RoleCandidate)
	})
}
