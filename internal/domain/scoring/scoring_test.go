package scoring_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	scoring "github.com/okian/vigil/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func history(types ...model.EventType) []model.EventRecord {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	out := make([]model.EventRecord, len(types))
	for i, t := range types {
		out[i] = model.EventRecord{
			ID:        "ev-" + string(rune('a'+i)),
			SessionID: "session-1",
			Seq:       int64(i + 1),
			EventType: t,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Severity:  model.SeverityMedium,
		}
	}
	return out
}

func repeat(t model.EventType, n int) []model.EventType {
	out := make([]model.EventType, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func TestScore(t *testing.T) {
	Convey("Given the authenticity scoring engine", t, func() {
		Convey("When the history is empty", func() {
			Convey("Then the score is 100", func() {
				So(scoring.Score(nil), ShouldEqual, 100)
				So(scoring.Score([]model.EventRecord{}), ShouldEqual, 100)
			})
		})

		Convey("When there is a single tab switch", func() {
			So(scoring.Score(history(model.EventTabSwitch)), ShouldEqual, 90)
		})

		Convey("When there are exactly three window blurs", func() {
			Convey("Then the flat pattern penalty is added once", func() {
				So(scoring.Score(history(repeat(model.EventWindowBlur, 3)...)), ShouldEqual, 61)
			})
		})

		Convey("When there are five window blurs", func() {
			Convey("Then the blur penalty does not escalate further", func() {
				So(scoring.Score(history(repeat(model.EventWindowBlur, 5)...)), ShouldEqual, 100-40-15)
			})
		})

		Convey("When there are two window blurs", func() {
			So(scoring.Score(history(repeat(model.EventWindowBlur, 2)...)), ShouldEqual, 84)
		})

		Convey("When code_paste occurs three times", func() {
			h := history(repeat(model.EventCodePaste, 3)...)

			Convey("Then only the third occurrence is escalated", func() {
				So(scoring.Penalty(h), ShouldEqual, 30+30+45)
				So(scoring.Score(h), ShouldEqual, 0)
			})
		})

		Convey("When face_not_detected occurs three times", func() {
			h := history(repeat(model.EventFaceNotDetected, 3)...)
			So(scoring.Penalty(h), ShouldEqual, 20+20+30)
			So(scoring.Score(h), ShouldEqual, 30)
		})

		Convey("When a non-escalating type repeats", func() {
			h := history(repeat(model.EventGazeAway, 3)...)
			So(scoring.Penalty(h), ShouldEqual, 36)
		})

		Convey("When the history contains unknown or zero-weight types", func() {
			h := history(model.EventType("not_a_thing"), model.EventWindowFocus, model.EventFullscreenEnter)

			Convey("Then they contribute nothing", func() {
				So(scoring.Score(h), ShouldEqual, 100)
			})
		})

		Convey("When the penalty exceeds 100", func() {
			h := history(model.EventMultipleFacesDetected, model.EventMultipleFacesDetected, model.EventAIPatternDetected)
			So(scoring.Score(h), ShouldEqual, 0)
		})
	})
}

func TestScoreProperties(t *testing.T) {
	Convey("Given random histories", t, func() {
		all := []model.EventType{
			model.EventTabSwitch, model.EventWindowBlur, model.EventWindowFocus, model.EventPasteAttempt,
			model.EventFullscreenExit, model.EventWordBurst, model.EventLongDelay, model.EventTypingFast,
			model.EventCodePaste, model.EventDevtoolsOpen, model.EventRightClickAttempt,
			model.EventKeyboardShortcutCheat, model.EventAIPatternDetected, model.EventRapidSolution,
			model.EventFaceNotDetected, model.EventMultipleFacesDetected, model.EventGazeAway,
			model.EventType("mystery"),
		}
		rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data

		Convey("Then scores stay in range, ignore order, and never increase", func() {
			for round := 0; round < 200; round++ {
				n := rng.Intn(12)
				types := make([]model.EventType, n)
				for i := range types {
					types[i] = all[rng.Intn(len(all))]
				}
				h := history(types...)
				s := scoring.Score(h)
				So(s, ShouldBeBetweenOrEqual, 0, 100)

				shuffled := append([]model.EventRecord(nil), h...)
				rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
				So(scoring.Score(shuffled), ShouldEqual, s)

				extended := history(append(types, all[rng.Intn(len(all))])...)
				So(scoring.Score(extended), ShouldBeLessThanOrEqualTo, s)
			}
		})
	})
}

func TestEvaluateEvent(t *testing.T) {
	Convey("Given single event types", t, func() {
		So(scoring.EvaluateEvent(model.EventTabSwitch), ShouldEqual, 10)
		So(scoring.EvaluateEvent(model.EventDevtoolsOpen), ShouldEqual, 35)
		So(scoring.EvaluateEvent(model.EventMultipleFacesDetected), ShouldEqual, 45)
		So(scoring.EvaluateEvent(model.EventWindowFocus), ShouldEqual, 0)
		So(scoring.EvaluateEvent(model.EventType("")), ShouldEqual, 0)
		So(scoring.Describe(model.EventType("nope")), ShouldEqual, "Unknown event")
	})
}

func TestClassifyScore(t *testing.T) {
	Convey("Given tier boundaries", t, func() {
		So(scoring.ClassifyScore(100), ShouldEqual, scoring.TierHigh)
		So(scoring.ClassifyScore(75), ShouldEqual, scoring.TierHigh)
		So(scoring.ClassifyScore(74), ShouldEqual, scoring.TierModerate)
		So(scoring.ClassifyScore(45), ShouldEqual, scoring.TierModerate)
		So(scoring.ClassifyScore(44), ShouldEqual, scoring.TierLow)
		So(scoring.ClassifyScore(0), ShouldEqual, scoring.TierLow)
	})
}

func TestBreakdown(t *testing.T) {
	Convey("Given a mixed history", t, func() {
		h := history(model.EventWindowBlur, model.EventWindowBlur, model.EventWindowBlur, model.EventTabSwitch)
		b := scoring.Breakdown(h)

		Convey("Then each type reports its contribution", func() {
			So(b[model.EventWindowBlur], ShouldEqual, 24+15)
			So(b[model.EventTabSwitch], ShouldEqual, 10)
			So(len(b), ShouldEqual, 2)
		})
	})
}
