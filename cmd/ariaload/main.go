package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ariavoice/aria/internal/audio"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/protocol"
)

// ariaload replays scripted chat turns over the websocket and reports
// client-observed latency to first text, first audio and turn end, then
// fetches the server's own /api/perf window for comparison.

type options struct {
	baseURL        string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	reset          bool
	verbose        bool
	texts          []string
	wavDir         string
	wavRate        int
}

var defaultUtterances = []string{
	"Reply in one short sentence: how are you?",
	"Reply in one short sentence: what can you do?",
	"Reply in one short sentence: tell me a fact.",
	"Reply in one short sentence: top risk of streaming audio?",
}

type turnTiming struct {
	firstContent time.Duration
	firstAudio   time.Duration
	total        time.Duration
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ariaload: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ariaload: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8000", "server base URL")
	flag.IntVar(&cfg.turns, "turns", 10, "number of chat turns to replay")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 150, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 30000, "per-turn timeout in milliseconds")
	flag.BoolVar(&cfg.reset, "reset", true, "reset the server perf window before replaying")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	flag.StringVar(&cfg.wavDir, "wav-dir", "", "save each turn's audio as a WAV file in this directory (optional)")
	flag.IntVar(&cfg.wavRate, "wav-rate", 24000, "sample rate written into saved WAV headers")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond
	if cfg.wavDir != "" && cfg.wavRate <= 0 {
		return options{}, fmt.Errorf("wav-rate must be > 0")
	}

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	client := &http.Client{Timeout: 15 * time.Second}

	if cfg.reset {
		if err := resetPerfWindow(client, cfg.baseURL); err != nil {
			return fmt.Errorf("reset perf window: %w", err)
		}
	}
	if cfg.wavDir != "" {
		if err := os.MkdirAll(cfg.wavDir, 0o755); err != nil {
			return fmt.Errorf("create wav dir: %w", err)
		}
	}

	wsURL, err := chatURL(cfg.baseURL)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	timings := make([]turnTiming, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		if cfg.verbose {
			fmt.Printf("ariaload: turn %d/%d text=%q\n", i+1, cfg.turns, text)
		}

		start := time.Now()
		msg := protocol.ClientMessage{
			Action:   protocol.ActionChat,
			Messages: []protocol.ChatMessage{{Sender: "user", Text: text}},
		}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("turn %d send: %w", i+1, err)
		}

		tm, pcm, err := readTurn(conn, start, cfg.turnTimeout, cfg.verbose, cfg.wavDir != "")
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		timings = append(timings, tm)

		if cfg.wavDir != "" && len(pcm) > 0 {
			path := filepath.Join(cfg.wavDir, fmt.Sprintf("turn-%03d.wav", i+1))
			if err := audio.WriteWAVPCM16LEFile(path, pcm, cfg.wavRate); err != nil {
				return fmt.Errorf("turn %d save wav: %w", i+1, err)
			}
			if cfg.verbose {
				fmt.Printf("ariaload: wrote %s (%d bytes)\n", path, len(pcm))
			}
		}

		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	printSummary(timings)
	return printServerWindow(client, cfg.baseURL)
}

// readTurn consumes frames until the listening broadcast that closes every
// turn, picking up first-content and first-audio marks along the way. The
// marker-only audio frame carries no samples and never counts as audio.
func readTurn(conn *websocket.Conn, start time.Time, timeout time.Duration, verbose, collect bool) (turnTiming, []byte, error) {
	var tm turnTiming
	var pcm []byte
	deadline := start.Add(timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return tm, pcm, fmt.Errorf("read: %w", err)
		}
		switch kind {
		case websocket.BinaryMessage:
			payload, ok := protocol.DecodeAudioFrame(data)
			if !ok || len(payload) == 0 {
				continue
			}
			if tm.firstAudio == 0 {
				tm.firstAudio = time.Since(start)
			}
			if collect {
				pcm = append(pcm, payload...)
			}
		case websocket.TextMessage:
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				continue
			}
			if _, ok := fields["content"]; ok && tm.firstContent == 0 {
				tm.firstContent = time.Since(start)
			}
			if raw, ok := fields["detail"]; ok && verbose {
				fmt.Fprintf(os.Stderr, "ariaload: server detail=%s\n", raw)
			}
			if raw, ok := fields["error"]; ok && verbose {
				fmt.Fprintf(os.Stderr, "ariaload: server error=%s\n", raw)
			}
			if raw, ok := fields["is_listening"]; ok {
				var listening bool
				if err := json.Unmarshal(raw, &listening); err == nil && listening {
					tm.total = time.Since(start)
					return tm, pcm, nil
				}
			}
		}
	}
}

func printSummary(timings []turnTiming) {
	firstContent := make([]time.Duration, 0, len(timings))
	firstAudio := make([]time.Duration, 0, len(timings))
	total := make([]time.Duration, 0, len(timings))
	for _, tm := range timings {
		if tm.firstContent > 0 {
			firstContent = append(firstContent, tm.firstContent)
		}
		if tm.firstAudio > 0 {
			firstAudio = append(firstAudio, tm.firstAudio)
		}
		total = append(total, tm.total)
	}

	fmt.Printf("ariaload: %d turns, %d with audio\n", len(timings), len(firstAudio))
	printStats("first_content", firstContent)
	printStats("first_audio", firstAudio)
	printStats("turn_total", total)
}

func printStats(label string, samples []time.Duration) {
	if len(samples) == 0 {
		fmt.Printf("  %-13s no samples\n", label)
		return
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum time.Duration
	for _, s := range sorted {
		sum += s
	}
	fmt.Printf("  %-13s n=%d avg=%s p50=%s p95=%s max=%s\n",
		label, len(sorted), sum/time.Duration(len(sorted)),
		percentile(sorted, 0.50), percentile(sorted, 0.95), sorted[len(sorted)-1])
}

// percentile picks from a sorted slice by nearest-rank.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * q)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func resetPerfWindow(client *http.Client, baseURL string) error {
	resp, err := client.Post(baseURL+"/api/perf/reset", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func printServerWindow(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/api/perf")
	if err != nil {
		return fmt.Errorf("fetch perf window: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read perf window: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch perf window: HTTP %d", resp.StatusCode)
	}

	var snap observability.StageSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return fmt.Errorf("decode perf window: %w", err)
	}

	fmt.Printf("server window (ring capacity %d):\n", snap.WindowSize)
	for _, stage := range snap.Stages {
		fmt.Printf("  %-16s n=%d avg=%.1fms p50=%.1fms p95=%.1fms\n",
			stage.Stage, stage.Samples, stage.AvgMS, stage.P50MS, stage.P95MS)
	}
	for _, ind := range snap.Indicators {
		fmt.Printf("  %-16s count=%d\n", ind.Name, ind.Count)
	}
	return nil
}

func chatURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat"
	return u.String(), nil
}
