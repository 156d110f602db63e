package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ariavoice/aria/internal/audio"
	"github.com/ariavoice/aria/internal/history"
	"github.com/ariavoice/aria/internal/llm"
	"github.com/ariavoice/aria/internal/protocol"
	"github.com/ariavoice/aria/internal/voice"
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsReadLimit        = 2 << 20
	historySaveTimeout = 3 * time.Second
)

// wsClient serializes writes to one websocket connection. The transcript
// pump, the listening broadcaster and the turn pipeline all write
// concurrently; gorilla permits only one writer at a time.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn}
}

func (c *wsClient) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) sendBinary(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// handleChatWS is the full-duplex chat endpoint. The client sends command
// envelopes; the server pushes transcripts, listening-state changes,
// assistant text deltas and binary audio frames. Commands are handled in
// arrival order on this goroutine, so a chat turn blocks later commands
// from the same client until it finishes. Stops arrive through the REST
// surface, which is why they work mid-turn.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := newWSClient(conn)
	s.metrics.ActiveConnections.Inc()

	detach := s.broadcast.Attach(func(listening bool) error {
		return client.sendJSON(protocol.ListeningState{IsListening: listening})
	})

	pumpStop := make(chan struct{})
	pumpDone := make(chan struct{})
	go s.pumpTranscripts(client, pumpStop, pumpDone)

	defer func() {
		close(pumpStop)
		<-pumpDone
		detach()
		s.control.Pause()
		// The departing client learns the microphone went quiet even when
		// the pause was a no-op; it is detached by now, so tell it directly.
		_ = client.sendJSON(protocol.ListeningState{IsListening: false})
		_ = conn.Close()
		s.metrics.ActiveConnections.Dec()
	}()

	conn.SetReadLimit(wsReadLimit)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedAction) {
				continue
			}
			_ = client.sendJSON(protocol.Detail{Detail: err.Error()})
			continue
		}

		switch msg.Action {
		case protocol.ActionStartSTT:
			s.control.Resume()
		case protocol.ActionPauseSTT:
			s.control.Pause()
		case protocol.ActionChat:
			s.runChatTurn(r.Context(), client, msg.Messages)
		}
	}
}

// pumpTranscripts forwards recognized speech to the client until told to
// stop. Interim hypotheses are suppressed unless the deployment asked for
// them; finals go out as plain text.
func (s *Server) pumpTranscripts(client *wsClient, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if s.engine == nil {
		<-stop
		return
	}
	transcripts := s.engine.Transcripts()
	for {
		select {
		case <-stop:
			return
		case tr, ok := <-transcripts:
			if !ok {
				return
			}
			text := strings.TrimSpace(tr.Text)
			if text == "" {
				continue
			}
			if !tr.Final {
				if !s.cfg.STTInterimResults {
					continue
				}
				text = "(interim) " + text
			}
			if err := client.sendJSON(protocol.STTText{Text: text}); err != nil {
				return
			}
		}
	}
}

func (s *Server) runChatTurn(ctx context.Context, client *wsClient, messages []protocol.ChatMessage) {
	prepared, userText := s.prepareMessages(messages)

	// The microphone goes quiet for the whole exchange so the assistant
	// does not transcribe its own voice, and comes back on however the
	// turn ends.
	s.control.Pause()
	defer s.control.Resume()

	// Pipeline failures are counted by the turn runner itself; device
	// write failures surface only here.
	sink, finish := s.turnSink(client)
	res, err := s.turner.RunTurn(ctx, prepared, sink)
	if err != nil {
		// Markers are already out; the client sees a finished stream plus
		// this explanation.
		_ = client.sendJSON(protocol.TurnError{Error: err.Error()})
	}
	if err := finish(); err != nil {
		s.metrics.ProviderErrors.WithLabelValues("playback", "write").Inc()
	}
	s.recordTurn(userText, res)
}

// prepareMessages converts the client-held history into model messages,
// prepending the configured system prompt. Entries with unknown senders
// are skipped rather than failing the turn. The returned string is the
// latest user utterance, kept for the conversation log.
func (s *Server) prepareMessages(messages []protocol.ChatMessage) ([]llm.Message, string) {
	prepared := make([]llm.Message, 0, len(messages)+1)
	if prompt := strings.TrimSpace(s.cfg.LLMSystemPrompt); prompt != "" {
		prepared = append(prepared, llm.Message{Role: "system", Content: prompt})
	}
	var userText string
	for _, m := range messages {
		role, err := m.Role()
		if err != nil {
			continue
		}
		if role == "user" {
			userText = m.Text
		}
		prepared = append(prepared, llm.Message{Role: role, Content: m.Text})
	}
	return prepared, userText
}

// recordTurn saves the exchange without holding up the next turn. A slow or
// failing store costs a counter increment, not conversation latency.
func (s *Server) recordTurn(userText string, res voice.TurnResult) {
	if s.store == nil {
		return
	}
	if strings.TrimSpace(userText) == "" && strings.TrimSpace(res.Text) == "" {
		return
	}
	turn := history.Turn{
		UserText:      userText,
		AssistantText: res.Text,
		Phrases:       res.Phrases,
		FirstAudioMS:  res.FirstAudio.Milliseconds(),
		TotalMS:       res.Total.Milliseconds(),
	}
	if s.cfg.HistoryRedactPII {
		turn = history.Redact(turn)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
		defer cancel()
		if err := s.store.SaveTurn(ctx, turn); err != nil {
			s.metrics.ProviderErrors.WithLabelValues("history", "save").Inc()
		}
	}()
}

// turnSink picks the audio consumer for one turn. Exactly one of the
// following is wired: the websocket (client-side playback), the local
// output device, or nothing when neither is available. The finish func
// settles the local player after the turn and reports its error.
func (s *Server) turnSink(client *wsClient) (voice.TurnSink, func() error) {
	if s.cfg.FrontendPlayback {
		return &wsTurnSink{client: client}, func() error { return nil }
	}
	if dev := s.playback.device(); dev != nil {
		sink := newLocalTurnSink(client, dev, s.turner.Signals().TTSStopped)
		return sink, sink.finish
	}
	return &textOnlySink{client: client}, func() error { return nil }
}

// wsTurnSink streams the turn to the websocket: JSON deltas for text,
// prefixed binary frames for audio, a bare marker frame as the terminator.
type wsTurnSink struct {
	client *wsClient
}

func (t *wsTurnSink) OnContent(delta string) error {
	return t.client.sendJSON(protocol.ContentDelta{Content: delta})
}

func (t *wsTurnSink) OnAudioChunk(chunk []byte) error {
	return t.client.sendBinary(protocol.EncodeAudioFrame(chunk))
}

func (t *wsTurnSink) OnAudioEnd() error {
	return t.client.sendBinary(protocol.EndOfAudioFrame())
}

// localTurnSink plays audio on the server's own output device while text
// deltas still stream to the client. No end-of-audio frame goes out; the
// client is not playing anything.
type localTurnSink struct {
	client  *wsClient
	chunks  chan []byte
	playerr chan error
}

func newLocalTurnSink(client *wsClient, dev audio.Device, stopped func() bool) *localTurnSink {
	s := &localTurnSink{
		client:  client,
		chunks:  make(chan []byte, 64),
		playerr: make(chan error, 1),
	}
	go func() {
		s.playerr <- audio.NewPlayer(dev).Run(s.chunks, stopped)
	}()
	return s
}

func (t *localTurnSink) OnContent(delta string) error {
	return t.client.sendJSON(protocol.ContentDelta{Content: delta})
}

func (t *localTurnSink) OnAudioChunk(chunk []byte) error {
	t.chunks <- chunk
	return nil
}

func (t *localTurnSink) OnAudioEnd() error {
	return nil
}

func (t *localTurnSink) finish() error {
	close(t.chunks)
	return <-t.playerr
}

// textOnlySink drops audio. It serves turns where server-side playback is
// configured but no output device could be opened.
type textOnlySink struct {
	client *wsClient
}

func (t *textOnlySink) OnContent(delta string) error {
	return t.client.sendJSON(protocol.ContentDelta{Content: delta})
}

func (t *textOnlySink) OnAudioChunk([]byte) error { return nil }

func (t *textOnlySink) OnAudioEnd() error { return nil }
