package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/sitereport/pkg/provider/stt"
)

func TestTranscribe_AgainstTestServer(t *testing.T) {
	t.Parallel()

	forms := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		if _, hdr, err := r.FormFile("file"); err == nil {
			got["filename"] = hdr.Filename
		}
		forms <- got
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " Fissure dans le béton. "})
	}))
	defer srv.Close()

	p, err := New("sk-test", "", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Transcribe(context.Background(), stt.Request{
		Audio:    []byte("RIFF....WAVE"),
		Language: "fr",
		Keywords: []stt.KeywordBoost{{Keyword: "fissure"}, {Keyword: "béton"}},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "Fissure dans le béton." {
		t.Errorf("Text=%q", res.Text)
	}

	form := <-forms
	if form["model"] != DefaultModel {
		t.Errorf("model=%q, want %q", form["model"], DefaultModel)
	}
	if form["language"] != "fr" {
		t.Errorf("language=%q, want fr", form["language"])
	}
	if form["filename"] != "recording.wav" {
		t.Errorf("filename=%q, want recording.wav", form["filename"])
	}
	if !strings.Contains(form["prompt"], "fissure, béton") {
		t.Errorf("prompt=%q, want vocabulary hint", form["prompt"])
	}
}

func TestVocabularyPrompt_Empty(t *testing.T) {
	t.Parallel()
	if got := vocabularyPrompt(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}
