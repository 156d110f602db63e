package wakeword

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	porcupine "github.com/Picovoice/porcupine/binding/go/v2"

	"github.com/ariavoice/aria/internal/audio"
	"github.com/ariavoice/aria/internal/observability"
)

// Config holds what keyword detection needs to reach the local control
// surface.
type Config struct {
	AccessKey   string
	StopModel   string
	Sensitivity float64
	ControlURL  string
	Client      *http.Client
	Metrics     *observability.Metrics
}

// Action maps one keyword slot to the control endpoints fired when the
// engine reports it.
type Action struct {
	Keyword   string
	Endpoints []string
}

type keywordEngine interface {
	Process(pcm []int16) (int, error)
	Delete() error
}

type frameSource interface {
	Start() error
	Frames() <-chan []int16
	Close() error
}

// Detector runs a keyword engine over a capture stream and turns
// detections into control-surface calls.
type Detector struct {
	engine  keywordEngine
	source  frameSource
	actions []Action
	post    func(path string) error
	metrics *observability.Metrics

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

// New initializes Porcupine and acquires the capture device. The stop
// keyword model is optional; without it only "computer" is armed.
func New(cfg Config) (*Detector, error) {
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return nil, fmt.Errorf("picovoice access key is required")
	}

	actions := make([]Action, 0, 2)
	engine := &porcupine.Porcupine{AccessKey: cfg.AccessKey}
	if strings.TrimSpace(cfg.StopModel) != "" {
		// Custom keyword paths come first, built-ins are appended after
		// them, and the action table follows the same order.
		engine.KeywordPaths = []string{strings.TrimSpace(cfg.StopModel)}
		actions = append(actions, Action{
			Keyword:   "stop there",
			Endpoints: []string{"/api/stop-tts", "/api/stop-generation"},
		})
	}
	engine.BuiltInKeywords = []porcupine.BuiltInKeyword{porcupine.COMPUTER}
	actions = append(actions, Action{
		Keyword:   "computer",
		Endpoints: []string{"/api/start-stt"},
	})

	sensitivity := float32(cfg.Sensitivity)
	if sensitivity <= 0 || sensitivity > 1 {
		sensitivity = 0.5
	}
	engine.Sensitivities = make([]float32, len(actions))
	for i := range engine.Sensitivities {
		engine.Sensitivities[i] = sensitivity
	}

	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("init porcupine: %w", err)
	}

	source, err := audio.NewCapturer(porcupine.SampleRate, porcupine.FrameLength)
	if err != nil {
		_ = engine.Delete()
		return nil, err
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.ControlURL), "/")
	if base == "" {
		base = "http://localhost:8000"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	return newDetector(engine, source, actions, controlPoster(base, client), cfg.Metrics), nil
}

func newDetector(engine keywordEngine, source frameSource, actions []Action, post func(string) error, metrics *observability.Metrics) *Detector {
	return &Detector{
		engine:  engine,
		source:  source,
		actions: actions,
		post:    post,
		metrics: metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the detection loop.
func (d *Detector) Start() error {
	if err := d.source.Start(); err != nil {
		return fmt.Errorf("start wakeword capture: %w", err)
	}
	d.started.Store(true)
	go d.run()
	return nil
}

// Close stops the loop and releases the engine and the capture device.
func (d *Detector) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	if d.started.Load() {
		<-d.done
	}
	_ = d.engine.Delete()
	return d.source.Close()
}

func (d *Detector) run() {
	defer close(d.done)
	frames := d.source.Frames()
	for {
		select {
		case <-d.stop:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			idx, err := d.engine.Process(frame)
			if err != nil {
				d.countError("process")
				continue
			}
			if idx < 0 || idx >= len(d.actions) {
				continue
			}
			d.fire(d.actions[idx])
		}
	}
}

func (d *Detector) fire(action Action) {
	if d.metrics != nil {
		d.metrics.Wakewords.WithLabelValues(action.Keyword).Inc()
	}
	for _, endpoint := range action.Endpoints {
		if err := d.post(endpoint); err != nil {
			d.countError("control")
		}
	}
}

func (d *Detector) countError(code string) {
	if d.metrics != nil {
		d.metrics.ProviderErrors.WithLabelValues("porcupine", code).Inc()
	}
}

func controlPoster(base string, client *http.Client) func(string) error {
	return func(path string) error {
		resp, err := client.Post(base+path, "application/json", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 300 {
			return fmt.Errorf("control %s: status %d", path, resp.StatusCode)
		}
		return nil
	}
}
