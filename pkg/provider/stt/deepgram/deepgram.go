// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. The recorded clip is streamed up in fixed-size
// binary frames, the stream is closed with a CloseStream message, and the
// final results Deepgram sends back are joined into one transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sitereport/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "fr"

	// frameSize is the number of audio bytes sent per binary message.
	frameSize = 8 << 10
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "nova-2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language code for recognition (e.g., "fr").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the streaming endpoint (ws:// or wss://).
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams req.Audio to Deepgram and waits for the stream to be
// closed by the server.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	if len(req.Audio) == 0 {
		return stt.Result{}, stt.ErrEmptyAudio
	}

	wsURL, err := p.buildURL(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	var col collector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for off := 0; off < len(req.Audio); off += frameSize {
			end := min(off+frameSize, len(req.Audio))
			if err := conn.Write(gctx, websocket.MessageBinary, req.Audio[off:end]); err != nil {
				return fmt.Errorf("deepgram: write audio: %w", err)
			}
		}
		if err := conn.Write(gctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
			return fmt.Errorf("deepgram: close stream: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for {
			_, msg, err := conn.Read(gctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					return nil
				}
				return fmt.Errorf("deepgram: read: %w", err)
			}
			if done := col.add(msg); done {
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		return stt.Result{}, err
	}
	conn.Close(websocket.StatusNormalClosure, "transcription complete")

	res := col.result()
	res.Language = req.Language
	if res.Language == "" {
		res.Language = p.language
	}
	return res, nil
}

// buildURL constructs the streaming endpoint URL for one request. Containerised
// audio carries its own encoding, so no sample_rate or encoding is sent.
func (p *Provider) buildURL(req stt.Request) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "false")

	// nova-3 replaced weighted keywords with plain key terms.
	keyterms := strings.HasPrefix(p.model, "nova-3")
	for _, kw := range req.Keywords {
		if keyterms {
			q.Add("keyterm", kw.Keyword)
			continue
		}
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure of a streaming message.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// collector accumulates final results. It is only touched by the read loop.
type collector struct {
	segments   []string
	confidence float64
	duration   float64
}

// add consumes one message and reports whether the stream is finished
// (Deepgram sends a Metadata message after the last result).
func (c *collector) add(data []byte) bool {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false
	}
	switch resp.Type {
	case "Metadata":
		c.duration = resp.Duration
		return true
	case "Results":
		if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			return false
		}
		alt := resp.Channel.Alternatives[0]
		if text := strings.TrimSpace(alt.Transcript); text != "" {
			c.segments = append(c.segments, text)
			c.confidence += alt.Confidence
		}
	}
	return false
}

func (c *collector) result() stt.Result {
	res := stt.Result{Text: strings.Join(c.segments, " ")}
	if n := len(c.segments); n > 0 {
		res.Confidence = c.confidence / float64(n)
	}
	res.Duration = time.Duration(c.duration * float64(time.Second))
	return res
}
