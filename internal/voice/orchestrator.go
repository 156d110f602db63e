package voice

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ariavoice/aria/internal/llm"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/segment"
)

// Orchestrator runs one spoken assistant turn end to end: it pauses
// listening, streams the model reply through segmentation into the speech
// provider, forwards text and audio to the sink in order, and resumes
// listening when the turn is over.
type Orchestrator struct {
	streamer  llm.Streamer
	provider  Provider
	listening ListeningControl
	signals   *Signals
	metrics   *observability.Metrics

	delimiters     []string
	useSegments    bool
	characterMax   int
	ttsEnabled     atomic.Bool
	fragmentBuffer int
}

const (
	turnFragmentBuffer = 256
	turnPhraseBuffer   = 64
	turnChunkBuffer    = 256
)

func NewOrchestrator(
	streamer llm.Streamer,
	provider Provider,
	listening ListeningControl,
	signals *Signals,
	metrics *observability.Metrics,
	delimiters []string,
	useSegments bool,
	characterMax int,
	ttsEnabled bool,
) *Orchestrator {
	o := &Orchestrator{
		streamer:       streamer,
		provider:       provider,
		listening:      listening,
		signals:        signals,
		metrics:        metrics,
		delimiters:     delimiters,
		useSegments:    useSegments,
		characterMax:   characterMax,
		fragmentBuffer: turnFragmentBuffer,
	}
	o.ttsEnabled.Store(ttsEnabled)
	return o
}

// SetTTSEnabled flips synthesis for subsequent turns. A turn already in
// flight keeps the wiring it started with.
func (o *Orchestrator) SetTTSEnabled(enabled bool) { o.ttsEnabled.Store(enabled) }

func (o *Orchestrator) TTSEnabled() bool { return o.ttsEnabled.Load() }

func (o *Orchestrator) Signals() *Signals { return o.signals }

func (o *Orchestrator) ProviderName() string {
	if o.provider == nil {
		return "none"
	}
	return o.provider.Name()
}

// TurnResult summarizes one completed turn for callers that persist or
// report it.
type TurnResult struct {
	Text       string
	Phrases    int
	FirstAudio time.Duration
	Total      time.Duration
}

// RunTurn executes one assistant turn over the prepared message history.
// It returns the turn summary together with the first pipeline error.
// Listening is resumed on every exit path that paused it.
func (o *Orchestrator) RunTurn(ctx context.Context, messages []llm.Message, sink TurnSink) (TurnResult, error) {
	start := time.Now()
	o.signals.ResetForTurn()

	ttsOn := o.ttsEnabled.Load() && o.provider != nil

	// With synthesis off the turn never occupies the speaker, so listening
	// state is left alone entirely.
	if ttsOn && o.listening != nil {
		o.listening.Pause()
		defer o.listening.Resume()
	}

	fragments := make(chan string, o.fragmentBuffer)
	phrases := make(chan string, turnPhraseBuffer)
	spoken := make(chan string, turnPhraseBuffer)
	chunks := make(chan []byte, turnChunkBuffer)

	acc := segment.NewAccumulator(o.delimiters, o.useSegments, o.characterMax)
	go acc.Run(fragments, phrases)

	phraseCount := 0
	go func() {
		defer close(spoken)
		for phrase := range phrases {
			if phraseCount == 0 {
				o.metrics.ObserveTurnStage("turn_to_first_phrase", time.Since(start))
			}
			phraseCount++
			o.metrics.Phrases.Inc()
			spoken <- phrase
		}
	}()

	providerErr := make(chan error, 1)
	if ttsOn {
		go func() {
			providerErr <- o.provider.Stream(ctx, spoken, chunks, o.signals.TTSStopped)
		}()
	} else {
		// Synthesis is off: drain phrases and close the audio stream right
		// away so the turn still ends with the end-of-audio signal.
		go func() {
			defer close(chunks)
			for range spoken {
			}
			providerErr <- nil
		}()
	}

	consumerDone := make(chan error, 1)
	var firstAudioAfter time.Duration
	go func() {
		var sinkErr error
		for chunk := range chunks {
			if len(chunk) == 0 {
				continue
			}
			if firstAudioAfter == 0 {
				firstAudioAfter = time.Since(start)
				o.metrics.ObserveTurnStage("turn_to_first_audio", firstAudioAfter)
				o.metrics.ObserveFirstAudioLatency(firstAudioAfter)
			}
			o.metrics.AudioChunks.WithLabelValues(o.ProviderName()).Inc()
			o.metrics.AudioBytes.WithLabelValues(o.ProviderName()).Add(float64(len(chunk)))
			if sinkErr == nil {
				if err := sink.OnAudioChunk(chunk); err != nil {
					sinkErr = err
				}
			}
		}
		if err := sink.OnAudioEnd(); err != nil && sinkErr == nil {
			sinkErr = err
		}
		consumerDone <- sinkErr
	}()

	var reply strings.Builder
	firstFragmentSeen := false
	streamErr := o.streamer.StreamChat(ctx, messages, o.signals.GenerationStopped, func(fragment string) error {
		if !firstFragmentSeen {
			firstFragmentSeen = true
			o.metrics.ObserveTurnStage("turn_to_first_fragment", time.Since(start))
		}
		reply.WriteString(fragment)
		if err := sink.OnContent(fragment); err != nil {
			return err
		}
		fragments <- fragment
		return nil
	})
	close(fragments)

	provErr := <-providerErr
	sinkErr := <-consumerDone
	if provErr != nil {
		o.metrics.ProviderErrors.WithLabelValues(o.ProviderName(), "synthesis").Inc()
		o.metrics.ObserveTurnIndicator("synthesis_error")
	}

	result := TurnResult{
		Text:       reply.String(),
		Phrases:    phraseCount,
		FirstAudio: firstAudioAfter,
		Total:      time.Since(start),
	}
	o.metrics.ObserveTurnStage("turn_total", result.Total)
	o.metrics.Turns.WithLabelValues(o.turnOutcome(streamErr)).Inc()
	if o.signals.TTSStopped() {
		o.metrics.ObserveTurnIndicator("tts_stop")
	}
	if o.signals.GenerationStopped() {
		o.metrics.ObserveTurnIndicator("generation_stop")
	}

	if streamErr != nil {
		return result, streamErr
	}
	return result, sinkErr
}

func (o *Orchestrator) turnOutcome(streamErr error) string {
	switch {
	case streamErr != nil:
		return "failed"
	case o.signals.TTSStopped() || o.signals.GenerationStopped():
		return "stopped"
	default:
		return "completed"
	}
}
