package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/domain/model"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type factory struct {
	name string
	open func() (repository.Store, error)
}

func stores() []factory {
	return []factory{
		{"memory", func() (repository.Store, error) { return repository.New("memory", "") }},
		{"sqlite", func() (repository.Store, error) { return repository.New("sqlite", ":memory:") }},
	}
}

func signal(t model.EventType, sev model.Severity, at time.Time) model.Signal {
	return model.Signal{EventType: t, Severity: sev, Timestamp: at, Metadata: map[string]any{"word_count": 12}}
}

func fixed(score int) repository.ScoreFunc {
	return func([]model.EventRecord) int { return score }
}

func TestStores(t *testing.T) {
	for _, f := range stores() {
		f := f
		Convey("Given a "+f.name+" store with a waiting meeting", t, func() {
			ctx := context.Background()
			store, err := f.open()
			So(err, ShouldBeNil)
			So(store.Init(ctx), ShouldBeNil)
			Reset(func() { _ = store.Close() })

			meeting := model.Meeting{ID: "m1", RecruiterName: "Ada", CreatedAt: t0, Status: model.MeetingWaiting}
			So(store.CreateMeeting(ctx, meeting), ShouldBeNil)

			Convey("The meeting can be read back", func() {
				got, err := store.GetMeeting(ctx, "m1")
				So(err, ShouldBeNil)
				So(got.RecruiterName, ShouldEqual, "Ada")
				So(got.CreatedAt.Equal(t0), ShouldBeTrue)
				So(got.Status, ShouldEqual, model.MeetingWaiting)

				_, err = store.GetMeeting(ctx, "nope")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Meeting status only moves forward", func() {
				So(store.UpdateMeetingStatus(ctx, "m1", model.MeetingActive), ShouldBeNil)
				So(store.UpdateMeetingStatus(ctx, "m1", model.MeetingActive), ShouldBeNil)
				err := store.UpdateMeetingStatus(ctx, "m1", model.MeetingWaiting)
				So(errors.Is(err, repository.ErrInvalidTransition), ShouldBeTrue)
				So(store.UpdateMeetingStatus(ctx, "m1", model.MeetingEnded), ShouldBeNil)

				got, _ := store.GetMeeting(ctx, "m1")
				So(got.Status, ShouldEqual, model.MeetingEnded)
			})

			Convey("With an active session", func() {
				sess := model.Session{ID: "s1", MeetingID: "m1", CandidateName: "Lin", AuthenticityScore: 100, StartedAt: t0}
				So(store.CreateSession(ctx, sess), ShouldBeNil)

				Convey("It is the meeting's active session", func() {
					got, err := store.ActiveSession(ctx, "m1")
					So(err, ShouldBeNil)
					So(got.ID, ShouldEqual, "s1")
					So(got.Ended(), ShouldBeFalse)

					active, err := store.ActiveSessions(ctx)
					So(err, ShouldBeNil)
					So(active, ShouldHaveLength, 1)
				})

				Convey("A second session is refused", func() {
					err := store.CreateSession(ctx, model.Session{ID: "s2", MeetingID: "m1", StartedAt: t0})
					So(errors.Is(err, repository.ErrSessionActive), ShouldBeTrue)
				})

				Convey("Events get consecutive sequence numbers", func() {
					for i := 0; i < 3; i++ {
						rec, err := store.CreateEventLog(ctx, "s1",
							signal(model.EventTabSwitch, model.SeverityHigh, t0.Add(time.Duration(i)*time.Second)), t0)
						So(err, ShouldBeNil)
						So(rec.Seq, ShouldEqual, i+1)
						So(rec.ID, ShouldNotBeEmpty)
					}

					history, err := store.GetEventsBySession(ctx, "s1")
					So(err, ShouldBeNil)
					So(history, ShouldHaveLength, 3)
					So(history[0].Seq, ShouldEqual, 1)
					So(history[2].Seq, ShouldEqual, 3)
					So(history[1].Timestamp.Equal(t0.Add(time.Second)), ShouldBeTrue)
					So(history[0].Severity, ShouldEqual, model.SeverityHigh)
					So(fmt.Sprint(history[0].Metadata["word_count"]), ShouldEqual, "12")
				})

				Convey("An empty history is empty", func() {
					history, err := store.GetEventsBySession(ctx, "s1")
					So(err, ShouldBeNil)
					So(history, ShouldBeEmpty)
				})

				Convey("The final score is derived from the history read at end", func() {
					for _, typ := range []model.EventType{model.EventTabSwitch, model.EventPasteAttempt} {
						_, err := store.CreateEventLog(ctx, "s1", signal(typ, model.SeverityHigh, t0), t0)
						So(err, ShouldBeNil)
					}

					var seen []model.EventRecord
					ended, history, err := store.EndSession(ctx, "s1", t0.Add(time.Hour), func(h []model.EventRecord) int {
						seen = h
						return 100 - 10*len(h)
					})
					So(err, ShouldBeNil)
					So(ended.AuthenticityScore, ShouldEqual, 80)
					So(seen, ShouldHaveLength, 2)
					So(history, ShouldHaveLength, 2)
					So(history[1].EventType, ShouldEqual, model.EventPasteAttempt)

					got, _ := store.GetSession(ctx, "s1")
					So(got.AuthenticityScore, ShouldEqual, 80)
				})

				Convey("Ending an unknown session is not found", func() {
					_, _, err := store.EndSession(ctx, "nope", t0, fixed(0))
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				})

				Convey("Scores update until the session ends", func() {
					So(store.UpdateSessionScore(ctx, "s1", 80), ShouldBeNil)

					ended, history, err := store.EndSession(ctx, "s1", t0.Add(time.Hour), fixed(75))
					So(err, ShouldBeNil)
					So(history, ShouldBeEmpty)
					So(ended.AuthenticityScore, ShouldEqual, 75)
					So(ended.Ended(), ShouldBeTrue)
					So(ended.EndedAt.Equal(t0.Add(time.Hour)), ShouldBeTrue)

					err = store.UpdateSessionScore(ctx, "s1", 10)
					So(errors.Is(err, repository.ErrSessionEnded), ShouldBeTrue)

					_, _, err = store.EndSession(ctx, "s1", t0, fixed(10))
					So(errors.Is(err, repository.ErrSessionEnded), ShouldBeTrue)

					got, _ := store.GetSession(ctx, "s1")
					So(got.AuthenticityScore, ShouldEqual, 75)

					_, err = store.CreateEventLog(ctx, "s1", signal(model.EventTabSwitch, model.SeverityHigh, t0), t0)
					So(errors.Is(err, repository.ErrSessionEnded), ShouldBeTrue)

					_, err = store.ActiveSession(ctx, "m1")
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

					latest, err := store.LatestSession(ctx, "m1")
					So(err, ShouldBeNil)
					So(latest.ID, ShouldEqual, "s1")

					Convey("and a new session may start", func() {
						So(store.CreateSession(ctx, model.Session{ID: "s2", MeetingID: "m1", StartedAt: t0.Add(2 * time.Hour)}), ShouldBeNil)
						latest, err := store.LatestSession(ctx, "m1")
						So(err, ShouldBeNil)
						So(latest.ID, ShouldEqual, "s2")
					})
				})
			})

			Convey("Sessions cannot join an ended meeting", func() {
				So(store.UpdateMeetingStatus(ctx, "m1", model.MeetingEnded), ShouldBeNil)
				err := store.CreateSession(ctx, model.Session{ID: "s1", MeetingID: "m1", StartedAt: t0})
				So(errors.Is(err, repository.ErrMeetingEnded), ShouldBeTrue)
			})

			Convey("Unknown sessions are not found", func() {
				_, err := store.GetSession(ctx, "nope")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				err = store.UpdateSessionScore(ctx, "nope", 1)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = store.CreateEventLog(ctx, "nope", signal(model.EventTabSwitch, model.SeverityHigh, t0), t0)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = store.LatestSession(ctx, "m1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	}

	Convey("Unknown drivers are rejected", t, func() {
		_, err := repository.New("mongo", "")
		So(errors.Is(err, repository.ErrUnsupportedDriver), ShouldBeTrue)
	})
}
