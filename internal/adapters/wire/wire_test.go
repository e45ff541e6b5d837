package wire_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/domain/call"
	"github.com/okian/vigil/internal/domain/model"
)

const minimalSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func frame(kind string, data any) []byte {
	raw, _ := json.Marshal(data)
	b, _ := json.Marshal(map[string]any{"type": kind, "data": json.RawMessage(raw)})
	return b
}

func TestDecode(t *testing.T) {
	Convey("Decoding client frames", t, func() {
		Convey("A behavior event decodes into its payload", func() {
			m, err := wire.Decode(frame("behavior_event", map[string]any{
				"session_id": "s1",
				"nonce":      "n1",
				"event": map[string]any{
					"event_type": "tab_switch",
					"timestamp":  "2026-01-02T03:04:05Z",
					"severity":   "high",
					"metadata":   map[string]any{"hidden": true},
				},
			}))
			So(err, ShouldBeNil)
			So(m.Kind, ShouldEqual, wire.KindBehaviorEvent)
			ev, ok := m.Payload.(*wire.BehaviorEvent)
			So(ok, ShouldBeTrue)
			So(ev.SessionID, ShouldEqual, "s1")
			So(ev.Nonce, ShouldEqual, "n1")
			So(ev.Event.EventType, ShouldEqual, model.EventTabSwitch)
			So(ev.Event.Severity, ShouldEqual, model.SeverityHigh)
			So(ev.Event.Metadata["hidden"], ShouldEqual, true)
		})

		Convey("Unknown kinds are rejected", func() {
			_, err := wire.Decode(frame("recruiter_subscribe", map[string]any{"meeting_id": "m"}))
			So(errors.Is(err, wire.ErrUnknownKind), ShouldBeTrue)
		})

		Convey("Malformed JSON is rejected", func() {
			_, err := wire.Decode([]byte(`{"type":`))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)
		})

		Convey("A payload of the wrong shape is rejected", func() {
			_, err := wire.Decode(frame("observer_subscribe", map[string]any{"meeting_id": 7}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)
		})

		Convey("Missing required ids are rejected", func() {
			_, err := wire.Decode(frame("session_end", map[string]any{}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)

			_, err = wire.Decode([]byte(`{"type":"candidate_joined"}`))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)
		})

		Convey("An unknown severity is rejected", func() {
			_, err := wire.Decode(frame("behavior_event", map[string]any{
				"session_id": "s1",
				"event":      map[string]any{"event_type": "tab_switch", "severity": "extreme"},
			}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)
		})

		Convey("A negative question index is rejected", func() {
			_, err := wire.Decode(frame("answer_submitted", map[string]any{"session_id": "s1", "question_index": -1}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)
		})
	})

	Convey("Decoding signaling frames", t, func() {
		Convey("A valid offer is accepted", func() {
			m, err := wire.Decode(frame("webrtc_offer", map[string]any{
				"session_id": "s1",
				"sdp":        map[string]any{"type": "offer", "sdp": minimalSDP},
			}))
			So(err, ShouldBeNil)
			sig := m.Payload.(*wire.Signal)
			So(sig.SDP.Type, ShouldEqual, webrtc.SDPTypeOffer)
			So(m.Kind.Signaling(), ShouldBeTrue)
		})

		Convey("An offer carrying an answer is rejected", func() {
			_, err := wire.Decode(frame("screen_share_offer", map[string]any{
				"sdp": map[string]any{"type": "answer", "sdp": minimalSDP},
			}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)
		})

		Convey("Unparseable SDP is rejected", func() {
			_, err := wire.Decode(frame("webrtc_answer", map[string]any{
				"sdp": map[string]any{"type": "answer", "sdp": "not a session description"},
			}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)
		})

		Convey("ICE needs a candidate and a valid target", func() {
			_, err := wire.Decode(frame("webrtc_ice_candidate", map[string]any{"target": "candidate"}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)

			_, err = wire.Decode(frame("screen_share_ice", map[string]any{
				"target":    "recruiter",
				"candidate": map[string]any{"candidate": "candidate:1 1 udp 1 127.0.0.1 5000 typ host"},
			}))
			So(errors.Is(err, wire.ErrInvalidPayload), ShouldBeTrue)

			m, err := wire.Decode(frame("screen_share_ice", map[string]any{
				"target":    "observer",
				"candidate": map[string]any{"candidate": "candidate:1 1 udp 1 127.0.0.1 5000 typ host", "sdpMid": "0"},
			}))
			So(err, ShouldBeNil)
			sig := m.Payload.(*wire.Signal)
			So(sig.Target, ShouldEqual, call.RoleObserver)
			So(*sig.Candidate.SDPMid, ShouldEqual, "0")
		})
	})

	Convey("Direction is enforced for client frames", t, func() {
		_, err := wire.DecodeFromClient(frame("score_update", map[string]any{"authenticity_score": 100}))
		So(errors.Is(err, wire.ErrDirection), ShouldBeTrue)

		_, err = wire.DecodeFromClient(frame("code_update", map[string]any{"session_id": "s1", "code": "x"}))
		So(err, ShouldBeNil)

		So(wire.KindWarning.FromClient(), ShouldBeFalse)
		So(wire.KindWarning.FromServer(), ShouldBeTrue)
		So(wire.KindBehaviorEvent.FromServer(), ShouldBeFalse)
		So(wire.Kind("nope").Known(), ShouldBeFalse)
	})
}

func TestEncode(t *testing.T) {
	Convey("Encoded frames decode back to the same payload", t, func() {
		b, err := wire.Encode(wire.KindSessionEnded, wire.SessionEnded{FinalScore: 62})
		So(err, ShouldBeNil)

		m, err := wire.Decode(b)
		So(err, ShouldBeNil)
		So(m.Payload.(*wire.SessionEnded).FinalScore, ShouldEqual, 62)
	})

	Convey("Unknown kinds cannot be encoded", t, func() {
		_, err := wire.Encode("nope", nil)
		So(errors.Is(err, wire.ErrUnknownKind), ShouldBeTrue)
		So(func() { wire.MustEncode("nope", nil) }, ShouldPanic)
	})

	Convey("Call messages convert both ways", t, func() {
		sdp := &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: minimalSDP}
		msg := call.Message{Kind: call.KindAnswer, MeetingID: "m1", SessionID: "s1", SDP: sdp}

		k, sig := wire.FromCall(msg)
		So(k, ShouldEqual, wire.KindAnswer)

		b, err := wire.Encode(k, sig)
		So(err, ShouldBeNil)
		m, err := wire.Decode(b)
		So(err, ShouldBeNil)

		back := wire.ToCall(m.Kind, m.Payload.(*wire.Signal))
		So(back.Kind, ShouldEqual, call.KindAnswer)
		So(back.MeetingID, ShouldEqual, "m1")
		So(back.SDP.SDP, ShouldEqual, minimalSDP)
	})

	Convey("Only signaling and session end frames reach an endpoint", t, func() {
		m, ok := wire.AsCall(wire.Message{Kind: wire.KindPeerCallReady, Payload: &wire.Signal{SessionID: "s1"}})
		So(ok, ShouldBeTrue)
		So(m.Kind, ShouldEqual, call.KindPeerCallReady)

		m, ok = wire.AsCall(wire.Message{Kind: wire.KindSessionEnded, Payload: &wire.SessionEnded{SessionID: "s1", FinalScore: 70}})
		So(ok, ShouldBeTrue)
		So(m.Kind, ShouldEqual, call.KindSessionEnded)
		So(m.SessionID, ShouldEqual, "s1")

		_, ok = wire.AsCall(wire.Message{Kind: wire.KindWarning, Payload: &wire.Notice{Message: "x"}})
		So(ok, ShouldBeFalse)
	})
}
