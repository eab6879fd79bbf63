package stt

import "time"

// Result is the transcript of one clip.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the language the backend recognised, when reported.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report one.
	Confidence float64

	// Duration is the audio length, when reported.
	Duration time.Duration
}

// KeywordBoost represents a keyword to boost in recognition.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "fissure").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
