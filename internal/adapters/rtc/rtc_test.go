package rtc_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/adapters/rtc"
	"github.com/okian/vigil/internal/domain/call"
)

func TestSampleSource(t *testing.T) {
	Convey("Given a sample source", t, func() {
		src := rtc.NewSampleSource()
		ctx := context.Background()

		Convey("Camera media has an audio and a video track", func() {
			stream, err := src.Acquire(ctx, call.MediaCamera)
			So(err, ShouldBeNil)
			So(stream.Tracks, ShouldHaveLength, 2)
			So(stream.Tracks[0].Kind(), ShouldEqual, call.TrackAudio)
			So(stream.Tracks[1].Kind(), ShouldEqual, call.TrackVideo)
			So(src.Live(), ShouldEqual, 2)

			stream.Release()
			So(src.Live(), ShouldEqual, 0)
			So(stream.Tracks[0].Enabled(), ShouldBeFalse)
		})

		Convey("Screen media has a single video track", func() {
			stream, err := src.Acquire(ctx, call.MediaScreen)
			So(err, ShouldBeNil)
			So(stream.Tracks, ShouldHaveLength, 1)
			So(stream.Tracks[0].Kind(), ShouldEqual, call.TrackVideo)
		})

		Convey("Denied media fails", func() {
			denied := errors.New("permission denied")
			src.Deny(call.MediaCamera, denied)
			_, err := src.Acquire(ctx, call.MediaCamera)
			So(errors.Is(err, denied), ShouldBeTrue)
		})

		Convey("A cancelled context fails", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := src.Acquire(cctx, call.MediaScreen)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("Disabled tracks drop samples", func() {
			stream, err := src.Acquire(ctx, call.MediaScreen)
			So(err, ShouldBeNil)
			track := stream.Tracks[0].(*rtc.LocalTrack)
			track.SetEnabled(false)
			So(track.Enabled(), ShouldBeFalse)
			So(track.WriteSample([]byte{0x1}, 33*time.Millisecond), ShouldBeNil)
		})
	})
}

func TestFactoryHandshake(t *testing.T) {
	Convey("Given two peers from loopback factories", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		src := rtc.NewSampleSource()
		local, err := src.Acquire(ctx, call.MediaCamera)
		So(err, ShouldBeNil)

		candidates := make(chan webrtc.ICECandidateInit, 32)
		offerer, err := rtc.NewFactory(nil, rtc.WithLoopback()).NewPeer(ctx, call.PeerConfig{
			Channel: call.ChannelPrimary,
			Local:   local,
			OnICECandidate: func(c webrtc.ICECandidateInit) {
				select {
				case candidates <- c:
				default:
				}
			},
		})
		So(err, ShouldBeNil)
		defer offerer.Close()

		answerer, err := rtc.NewFactory(nil, rtc.WithLoopback()).NewPeer(ctx, call.PeerConfig{Channel: call.ChannelPrimary})
		So(err, ShouldBeNil)
		defer answerer.Close()

		Convey("Offer and answer complete the exchange", func() {
			offer, err := offerer.CreateOffer(ctx)
			So(err, ShouldBeNil)
			So(offer.Type, ShouldEqual, webrtc.SDPTypeOffer)
			So(strings.Contains(offer.SDP, "m=audio"), ShouldBeTrue)
			So(strings.Contains(offer.SDP, "m=video"), ShouldBeTrue)

			answer, err := answerer.CreateAnswer(ctx, offer)
			So(err, ShouldBeNil)
			So(answer.Type, ShouldEqual, webrtc.SDPTypeAnswer)
			So(offerer.SetAnswer(ctx, answer), ShouldBeNil)

			select {
			case c := <-candidates:
				So(c.Candidate, ShouldNotBeEmpty)
				So(answerer.AddICECandidate(c), ShouldBeNil)
			case <-ctx.Done():
				So(ctx.Err(), ShouldBeNil)
			}
		})

		Convey("A malformed answer is rejected", func() {
			_, err := offerer.CreateOffer(ctx)
			So(err, ShouldBeNil)
			err = offerer.SetAnswer(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "garbage"})
			So(err, ShouldNotBeNil)
		})

		Convey("Close is idempotent", func() {
			So(offerer.Close(), ShouldBeNil)
			So(offerer.Close(), ShouldBeNil)
		})
	})
}
