// Package stub provides a deterministic offline transcriber for local
// development. It never contacts a backend: the transcript only states the
// approximate clip length, assuming 16 kHz mono 16-bit audio.
package stub

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/sitereport/pkg/provider/stt"
)

// bytesPerSecond is 16 kHz × 2 bytes × 1 channel.
const bytesPerSecond = 32000

// Provider implements stt.Provider without any network access.
type Provider struct{}

var _ stt.Provider = Provider{}

// Transcribe returns a placeholder transcript describing the clip length.
func (Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	seconds := max(len(req.Audio)/bytesPerSecond, 1)
	return stt.Result{
		Text: fmt.Sprintf("Placeholder transcript generated locally. "+
			"Audio length approximately %d seconds.", seconds),
		Language: req.Language,
		Duration: time.Duration(seconds) * time.Second,
	}, nil
}
