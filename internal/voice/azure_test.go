package voice

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func azureAudioFrame(payload []byte) []byte {
	headers := "Path: audio\r\nContent-Type: audio/basic\r\n"
	frame := make([]byte, 2+len(headers)+len(payload))
	binary.BigEndian.PutUint16(frame[:2], uint16(len(headers)))
	copy(frame[2:], headers)
	copy(frame[2+len(headers):], payload)
	return frame
}

func azureTurnEndFrame() []byte {
	return []byte("Path: turn.end\r\nContent-Type: application/json\r\n\r\n{}")
}

func fakeAzureServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
			t.Errorf("subscription key = %q, want test-key", got)
		}
		if r.URL.Query().Get("X-ConnectionId") == "" {
			t.Errorf("missing X-ConnectionId")
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, cfgMsg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !strings.Contains(string(cfgMsg), "Path: speech.config") {
			t.Errorf("first message should be speech.config, got %q", string(cfgMsg))
		}

		for {
			_, ctxMsg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if !strings.Contains(string(ctxMsg), "Path: synthesis.context") {
				t.Errorf("expected synthesis.context, got %q", string(ctxMsg))
			}
			_, ssmlMsg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if !strings.Contains(string(ssmlMsg), "<speak") {
				t.Errorf("expected ssml body, got %q", string(ssmlMsg))
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, azureAudioFrame([]byte("AAA"))); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, azureAudioFrame([]byte("BBB"))); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, azureTurnEndFrame()); err != nil {
				return
			}
		}
	}))
}

func TestAzureProviderStreamsPhrases(t *testing.T) {
	srv := fakeAzureServer(t)
	defer srv.Close()

	phrases := make(chan string, 2)
	phrases <- "Hello there."
	phrases <- "Second phrase."
	close(phrases)
	chunks := make(chan []byte, 16)

	p := NewAzureProvider(AzureConfig{
		Key:      "test-key",
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err := p.Stream(context.Background(), phrases, chunks, nil); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var got []string
	for c := range chunks {
		got = append(got, string(c))
	}
	want := []string{"AAA", "BBB", "AAA", "BBB"}
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAzureProviderStoppedDrainsPhrases(t *testing.T) {
	srv := fakeAzureServer(t)
	defer srv.Close()

	phrases := make(chan string, 3)
	phrases <- "one."
	phrases <- "two."
	phrases <- "three."
	close(phrases)
	chunks := make(chan []byte, 16)

	p := NewAzureProvider(AzureConfig{
		Key:      "test-key",
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err := p.Stream(context.Background(), phrases, chunks, func() bool { return true }); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if _, open := <-chunks; open {
		t.Fatalf("chunks should close without audio when stopped")
	}
}

func TestAzureProviderDialFailureStillClosesChunks(t *testing.T) {
	phrases := make(chan string, 1)
	phrases <- "unreachable."
	close(phrases)
	chunks := make(chan []byte, 1)

	p := NewAzureProvider(AzureConfig{Key: "test-key", Endpoint: "ws://127.0.0.1:1"})
	err := p.Stream(context.Background(), phrases, chunks, nil)
	if err == nil {
		t.Fatalf("Stream() expected dial error")
	}
	if _, open := <-chunks; open {
		t.Fatalf("chunks should be closed after dial failure")
	}
}

func TestParseAzureBinaryFrame(t *testing.T) {
	frame := azureAudioFrame([]byte{0x01, 0x02, 0x03})
	path, payload := parseAzureBinaryFrame(frame)
	if path != "audio" {
		t.Fatalf("path = %q, want audio", path)
	}
	if len(payload) != 3 || payload[0] != 0x01 {
		t.Fatalf("payload = %v", payload)
	}

	if p, _ := parseAzureBinaryFrame([]byte{0x00}); p != "" {
		t.Fatalf("short frame should parse empty, got %q", p)
	}
}

func TestParseAzureTextFramePath(t *testing.T) {
	if got := parseAzureTextFramePath(azureTurnEndFrame()); got != "turn.end" {
		t.Fatalf("path = %q, want turn.end", got)
	}
}

func TestBuildSSML(t *testing.T) {
	p := NewAzureProvider(AzureConfig{Voice: "en-US-KaiNeural", Rate: "1.0", Pitch: "0%", Volume: "default"})
	got := p.buildSSML("Tom & Jerry")
	want := "<speak version='1.0' xml:lang='en-US'><voice name='en-US-KaiNeural'><prosody rate='1.0' pitch='0%' volume='default'>Tom &amp; Jerry</prosody></voice></speak>"
	if got != want {
		t.Fatalf("buildSSML() = %q, want %q", got, want)
	}
}

func TestNormalizeProsodyRate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "1.0"},
		{"1.0", "1.0"},
		{"3.5", "2.0"},
		{"0.1", "0.5"},
		{"fast", "fast"},
	}
	for _, tc := range cases {
		if got := normalizeProsodyRate(tc.in); got != tc.want {
			t.Fatalf("normalizeProsodyRate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
