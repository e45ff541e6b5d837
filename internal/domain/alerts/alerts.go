// Package alerts classifies accepted events into cheat alerts.
//
// Alerts are a view over the event log. Nothing here is stored: the same
// history always reconstructs the same alerts with the same ids.
package alerts

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/scoring"
)

// MaxSnapshotChars bounds the evidence snapshot carried by an alert.
const MaxSnapshotChars = 300

// snapshotKey is the metadata key detectors use for evidence text.
const snapshotKey = "code_snapshot"

var alertNamespace = uuid.MustParse("6f1c2a8e-5d0b-4f7e-9a51-3c7d2e8b9f10") //nolint:gochecknoglobals // fixed namespace

var messages = map[model.EventType]string{ //nolint:gochecknoglobals // fixed message table
	model.EventCodePaste:             "Large code block pasted into the editor",
	model.EventDevtoolsOpen:          "Browser DevTools were opened",
	model.EventAIPatternDetected:     "AI-generated code pattern detected",
	model.EventRapidSolution:         "A full solution appeared within 30 seconds",
	model.EventKeyboardShortcutCheat: "Blocked DevTools / view-source shortcut",
	model.EventMultipleFacesDetected: "Multiple faces detected on camera",
	model.EventFaceNotDetected:       "Candidate's face is not visible",
	model.EventGazeAway:              "Candidate is repeatedly looking away",
	model.EventTabSwitch:             "Candidate switched to another tab",
	model.EventFullscreenExit:        "Candidate left fullscreen mode",
	model.EventPasteAttempt:          "Large paste into the answer box",
	model.EventWordBurst:             "Burst of words inserted at once",
}

// IsCriticalCheat reports whether t always raises an alert regardless of
// severity.
func IsCriticalCheat(t model.EventType) bool {
	if scoring.IsEscalating(t) {
		return true
	}
	return t == model.EventRapidSolution || t == model.EventKeyboardShortcutCheat
}

// Qualifies reports whether rec should surface as an alert.
func Qualifies(rec model.EventRecord) bool {
	return IsCriticalCheat(rec.EventType) || rec.Severity.Elevated()
}

// Message returns the fixed human-readable text for t.
func Message(t model.EventType) string {
	if m, ok := messages[t]; ok {
		return m
	}
	return fmt.Sprintf("Suspicious event: %s", t)
}

// FromRecord builds the alert for rec. The second result is false when the
// record does not qualify.
func FromRecord(rec model.EventRecord) (model.CheatAlert, bool) {
	if !Qualifies(rec) {
		return model.CheatAlert{}, false
	}
	return model.CheatAlert{
		ID:           alertID(rec),
		SessionID:    rec.SessionID,
		EventType:    rec.EventType,
		Severity:     rec.Severity,
		Message:      Message(rec.EventType),
		Timestamp:    rec.Timestamp,
		CodeSnapshot: snapshot(rec.Metadata),
	}, true
}

// Reconstruct rebuilds every alert of a history, in history order.
func Reconstruct(history []model.EventRecord) []model.CheatAlert {
	out := make([]model.CheatAlert, 0)
	for i := range history {
		if a, ok := FromRecord(history[i]); ok {
			out = append(out, a)
		}
	}
	return out
}

// Truncate cuts s to at most MaxSnapshotChars characters.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxSnapshotChars {
		return s
	}
	r := []rune(s)
	return string(r[:MaxSnapshotChars])
}

func alertID(rec model.EventRecord) string {
	return uuid.NewSHA1(alertNamespace, []byte(rec.ID)).String()
}

func snapshot(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	s, ok := meta[snapshotKey].(string)
	if !ok {
		return ""
	}
	return Truncate(s)
}
