package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/domain/model"
)

func TestPgUniqueViolation(t *testing.T) {
	Convey("Given errors from the postgres driver", t, func() {
		Convey("A wrapped unique violation is recognized", func() {
			err := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "idx_sessions_active"})
			So(isPgUniqueViolation(err), ShouldBeTrue)
		})

		Convey("Other failures are not", func() {
			So(isPgUniqueViolation(&pgconn.PgError{Code: "23503"}), ShouldBeFalse)
			So(isPgUniqueViolation(errors.New("connection reset")), ShouldBeFalse)
			So(isPgUniqueViolation(nil), ShouldBeFalse)
		})
	})
}

func TestCreateSessionUniqueViolation(t *testing.T) {
	Convey("Given a SQL store whose insert loses a race on the active-session index", t, func() {
		ctx := context.Background()
		db, err := sql.Open("sqlite", ":memory:")
		So(err, ShouldBeNil)
		db.SetMaxOpenConns(1)

		d := sqliteDialect
		d.uniqueViolation = func(err error) bool { return err != nil }
		store := &sqlStore{db: db, d: d, cfg: newConfig(nil)}
		So(store.Init(ctx), ShouldBeNil)
		Reset(func() { _ = store.Close() })

		t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
		for _, id := range []string{"m1", "m2"} {
			So(store.CreateMeeting(ctx, model.Meeting{ID: id, RecruiterName: "Ada", CreatedAt: t0, Status: model.MeetingWaiting}), ShouldBeNil)
		}
		So(store.CreateSession(ctx, model.Session{ID: "s1", MeetingID: "m1", StartedAt: t0}), ShouldBeNil)

		Convey("Then the failed insert is reported as an active session", func() {
			// Reusing the id fails the insert itself, past the active-session count.
			err := store.CreateSession(ctx, model.Session{ID: "s1", MeetingID: "m2", StartedAt: t0})
			So(errors.Is(err, ErrSessionActive), ShouldBeTrue)
		})
	})
}
