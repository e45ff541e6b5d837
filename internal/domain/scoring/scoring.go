// Package scoring computes the authenticity score of a session from its
// event history.
//
// The engine is a fixed rule table. Every call recomputes from the full
// history so any score can be reproduced from the stored event log alone.
package scoring

import (
	"math"

	"github.com/okian/vigil/internal/domain/model"
)

// Scoring rule constants.
const (
	baseScore = 100
	minScore  = 0
	maxScore  = 100

	blurRepeatThreshold = 3
	blurRepeatPenalty   = 15

	repeatCheatThreshold  = 2
	repeatCheatMultiplier = 1.5

	highTierFloor     = 75
	moderateTierFloor = 45
)

type rule struct {
	weight      int
	description string
}

var weights = map[model.EventType]rule{ //nolint:gochecknoglobals // fixed rule table
	model.EventTabSwitch:             {10, "Candidate switched browser tab"},
	model.EventPasteAttempt:          {20, "Large paste detected in answer"},
	model.EventFullscreenExit:        {15, "Candidate exited fullscreen mode"},
	model.EventWordBurst:             {25, "Large block of words inserted in under 2 seconds"},
	model.EventWindowBlur:            {8, "Browser window lost focus"},
	model.EventLongDelay:             {10, "Unusually long response delay detected"},
	model.EventTypingFast:            {5, "Abnormally fast typing speed detected"},
	model.EventCodePaste:             {30, "Large code block pasted into editor"},
	model.EventDevtoolsOpen:          {35, "Browser DevTools opened during session"},
	model.EventRightClickAttempt:     {8, "Right-click attempted in code editor"},
	model.EventKeyboardShortcutCheat: {20, "Cheat keyboard shortcut (F12/Ctrl+U) detected"},
	model.EventAIPatternDetected:     {40, "AI-generated code pattern detected (rapid, large insertion)"},
	model.EventRapidSolution:         {25, "Full solution appeared in under 30 seconds"},
	model.EventFaceNotDetected:       {20, "Candidate face not visible in camera"},
	model.EventMultipleFacesDetected: {45, "Multiple faces detected, possible external assistance"},
	model.EventGazeAway:              {12, "Candidate repeatedly looking away from screen"},
}

var escalating = map[model.EventType]struct{}{ //nolint:gochecknoglobals // fixed rule table
	model.EventCodePaste:             {},
	model.EventDevtoolsOpen:          {},
	model.EventAIPatternDetected:     {},
	model.EventMultipleFacesDetected: {},
	model.EventFaceNotDetected:       {},
}

// Tier is the integrity classification of a score.
type Tier string

// Integrity tiers.
const (
	TierHigh     Tier = "high"
	TierModerate Tier = "moderate"
	TierLow      Tier = "low"
)

// Score returns the authenticity score for an ordered event history.
// Unknown event types weigh zero.
func Score(history []model.EventRecord) int {
	return clamp(baseScore - Penalty(history))
}

// Penalty returns the total penalty for history before clamping.
func Penalty(history []model.EventRecord) int {
	total := 0
	for _, p := range Breakdown(history) {
		total += p
	}
	return total
}

// Breakdown returns the penalty contributed by each event type, including
// the repeated-blur pattern penalty under window_blur.
func Breakdown(history []model.EventRecord) map[model.EventType]int {
	counts := make(map[model.EventType]int, len(history))
	for i := range history {
		counts[history[i].EventType]++
	}

	out := make(map[model.EventType]int)
	if counts[model.EventWindowBlur] >= blurRepeatThreshold {
		out[model.EventWindowBlur] += blurRepeatPenalty
	}

	// Escalation applies per occurrence once the type's count passes the
	// threshold; earlier occurrences keep their base weight.
	seen := make(map[model.EventType]int, len(counts))
	for i := range history {
		t := history[i].EventType
		w := EvaluateEvent(t)
		if w == 0 {
			continue
		}
		seen[t]++
		if IsEscalating(t) && seen[t] > repeatCheatThreshold {
			w = int(math.Round(float64(w) * repeatCheatMultiplier))
		}
		out[t] += w
	}
	return out
}

// EvaluateEvent returns the base weight of a single event type.
func EvaluateEvent(t model.EventType) int {
	return weights[t].weight
}

// Describe returns a human-readable description of an event type.
func Describe(t model.EventType) string {
	if r, ok := weights[t]; ok {
		return r.description
	}
	return "Unknown event"
}

// IsEscalating reports whether repeats of t beyond the second are multiplied.
func IsEscalating(t model.EventType) bool {
	_, ok := escalating[t]
	return ok
}

// ClassifyScore maps a score to its integrity tier.
func ClassifyScore(score int) Tier {
	switch {
	case score >= highTierFloor:
		return TierHigh
	case score >= moderateTierFloor:
		return TierModerate
	default:
		return TierLow
	}
}

func clamp(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}
