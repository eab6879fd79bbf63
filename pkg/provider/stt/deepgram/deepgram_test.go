package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/sitereport/pkg/provider/stt"
)

func TestBuildURL_Defaults(t *testing.T) {
	t.Parallel()

	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rawURL, err := p.buildURL(stt.Request{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "fr", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "interim_results", "false", q.Get("interim_results"))
	if q.Has("sample_rate") {
		t.Errorf("sample_rate should not be sent for containerised audio")
	}
}

func TestBuildURL_KeytermsForNova3(t *testing.T) {
	t.Parallel()

	p, _ := New("key")
	rawURL, _ := p.buildURL(stt.Request{
		Language: "en",
		Keywords: []stt.KeywordBoost{{Keyword: "fissure", Boost: 2}, {Keyword: "béton", Boost: 2}},
	})
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "language", "en", q.Get("language"))
	if got := q["keyterm"]; len(got) != 2 || got[0] != "fissure" || got[1] != "béton" {
		t.Errorf("keyterm=%v, want [fissure béton]", got)
	}
	if q.Has("keywords") {
		t.Errorf("keywords must not be sent to nova-3")
	}
}

func TestBuildURL_WeightedKeywordsForOlderModels(t *testing.T) {
	t.Parallel()

	p, _ := New("key", WithModel("nova-2"))
	rawURL, _ := p.buildURL(stt.Request{Keywords: []stt.KeywordBoost{{Keyword: "panne", Boost: 1.5}}})
	u, _ := url.Parse(rawURL)
	assertEqual(t, "keywords", "panne:1.5", u.Query().Get("keywords"))
}

func TestCollector(t *testing.T) {
	t.Parallel()

	var c collector
	msgs := []string{
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"Inspec","confidence":0.4}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Inspection du vendredi.","confidence":0.9}]}}`,
		`not json`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Fissure dans le béton.","confidence":0.7}]}}`,
	}
	for _, m := range msgs {
		if c.add([]byte(m)) {
			t.Fatalf("collector finished early on %s", m)
		}
	}
	if !c.add([]byte(`{"type":"Metadata","duration":4.5}`)) {
		t.Fatal("Metadata should finish the stream")
	}

	res := c.result()
	assertEqual(t, "text", "Inspection du vendredi. Fissure dans le béton.", res.Text)
	if res.Confidence < 0.79 || res.Confidence > 0.81 {
		t.Errorf("confidence=%v, want 0.8", res.Confidence)
	}
	if res.Duration != 4500*time.Millisecond {
		t.Errorf("duration=%v, want 4.5s", res.Duration)
	}
}

func TestTranscribe_StreamsClipAndCollectsFinals(t *testing.T) {
	t.Parallel()

	received := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		total := 0
		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && strings.Contains(string(msg), "CloseStream") {
				break
			}
			total += len(msg)
		}
		received <- total

		_ = conn.Write(ctx, websocket.MessageText, []byte(
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Fuite d'eau au sous-sol.","confidence":0.95}]}}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Metadata","duration":2}`))
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	clip := make([]byte, 3*frameSize+100)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Transcribe(ctx, stt.Request{Audio: clip})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "text", "Fuite d'eau au sous-sol.", res.Text)
	assertEqual(t, "language", "fr", res.Language)
	if got := <-received; got != len(clip) {
		t.Errorf("server received %d bytes, want %d", got, len(clip))
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()
	p, _ := New("key")
	if _, err := p.Transcribe(context.Background(), stt.Request{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err=%v, want ErrEmptyAudio", err)
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %q, got %q", field, want, got)
	}
}
