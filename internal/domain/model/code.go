package model

import "time"

// Language is a coding challenge language.
type Language string

// Supported challenge languages.
const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
	LanguageTypeScript Language = "typescript"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	switch l {
	case LanguageJavaScript, LanguagePython, LanguageJava, LanguageCPP, LanguageTypeScript:
		return true
	}
	return false
}

// CodeUpdate is a live snapshot of the candidate's editor.
type CodeUpdate struct {
	SessionID string    `json:"session_id"`
	Code      string    `json:"code"`
	Language  Language  `json:"language"`
	CharCount int       `json:"char_count"`
	Timestamp time.Time `json:"timestamp"`
}

// Example is a sample input/output pair for a challenge.
type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// Challenge is a coding question pushed by the observer.
type Challenge struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Language    Language  `json:"language"`
	StarterCode string    `json:"starter_code"`
	Examples    []Example `json:"examples,omitempty"`
	Constraints []string  `json:"constraints,omitempty"`
}
