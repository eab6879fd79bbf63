// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A field memo is recorded in full before it is transcribed, so the contract
// is a single blocking call: a complete audio clip in, its transcript out.
// Backends that only offer a streaming API (Deepgram) upload the clip over
// their stream and collect the final results before returning.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned when a Request carries no audio bytes.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Request describes one recorded clip to transcribe.
type Request struct {
	// Audio is the encoded clip (WAV, WebM, MP3, OGG, ...) exactly as
	// recorded by the client. Raw 16-bit PCM is also accepted by backends
	// that document it.
	Audio []byte

	// Filename is the original file name, used by multipart backends to infer
	// the container format. Defaults to "recording.wav".
	Filename string

	// Language is the ISO 639-1 language hint (e.g., "fr"). Empty lets the
	// backend auto-detect.
	Language string

	// Keywords are vocabulary hints such as template trigger words.
	// Backends without keyword boosting ignore them.
	Keywords []KeywordBoost
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the transcript of req.Audio.
	//
	// Returns an error if the backend cannot be reached, rejects the audio, or
	// ctx is cancelled. An empty transcript for silent audio is not an error.
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// FilenameOrDefault returns req.Filename, or "recording.wav" when unset.
func (r Request) FilenameOrDefault() string {
	if r.Filename == "" {
		return "recording.wav"
	}
	return r.Filename
}
