package analyzer

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"fakedetect/pkg/types"
)

// Options configures New.
type Options struct {
	Snapshot types.ModelSnapshot
	// Target is the requested execution target; TargetAuto when empty.
	Target  Target
	OnnxLib string
	// Workers is the number of pooled sessions (default 1).
	Workers int
	// QueueTimeout bounds the wait for a free session; zero waits indefinitely.
	QueueTimeout time.Duration
	// InvertLabels reports the opposite class of the top logit.
	InvertLabels bool
	Publisher    EventPublisher
	// Open creates backends; OpenBackend when nil.
	Open Opener
}

// Analyzer classifies images with a pretrained two-class model. It is safe
// for concurrent use; forward passes are serialized per pooled session.
type Analyzer struct {
	model  string
	labels LabelMap
	proc   Processor
	invert bool
	target Target
	pool   *pool
	pub    EventPublisher
	closed atomic.Bool
}

// New loads the label map and preprocessing config from the snapshot and
// opens the session pool.
func New(opts Options) (*Analyzer, error) {
	labels, err := LoadLabelMap(opts.Snapshot.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.InvertLabels && len(labels) != 2 {
		return nil, fmt.Errorf("label inversion needs a two-class model, got %d classes", len(labels))
	}
	proc, err := LoadProcessor(opts.Snapshot.PreprocessorPath)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Target == "" {
		opts.Target = TargetAuto
	}
	if opts.Open == nil {
		opts.Open = OpenBackend
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	spec := BackendSpec{
		ModelPath: opts.Snapshot.ModelPath,
		Width:     proc.Width,
		Height:    proc.Height,
		NumLabels: len(labels),
		Target:    opts.Target,
		OnnxLib:   opts.OnnxLib,
	}
	backends, target, err := openBackends(opts.Open, spec, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", opts.Snapshot.Name, err)
	}
	a := &Analyzer{
		model:  opts.Snapshot.Name,
		labels: labels,
		proc:   proc,
		invert: opts.InvertLabels,
		target: target,
		pool:   newPool(backends, opts.QueueTimeout),
		pub:    opts.Publisher,
	}
	a.pub.Publish(Event{Name: EventModelLoaded, Model: a.model, Fields: map[string]any{
		"target":  string(target),
		"workers": len(backends),
		"labels":  []string(labels),
		"invert":  a.invert,
		"input":   fmt.Sprintf("%dx%d", proc.Width, proc.Height),
	}})
	return a, nil
}

// Predict decodes r as an image and classifies it.
func (a *Analyzer) Predict(ctx context.Context, r io.Reader) (types.Prediction, error) {
	if a.closed.Load() {
		return types.Prediction{}, ErrClosed
	}
	img, format, err := decodeImage(r)
	if err != nil {
		return types.Prediction{}, a.fail("decode", err)
	}
	pixels := a.proc.Transform(img)

	waitStart := time.Now()
	backend, release, err := a.pool.acquire(ctx)
	poolWaitDuration.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		return types.Prediction{}, a.fail("admission", err)
	}
	sessionsInUse.Inc()
	start := time.Now()
	logits, err := backend.Forward(ctx, pixels)
	elapsed := time.Since(start)
	sessionsInUse.Dec()
	release()
	inferenceDuration.Observe(elapsed.Seconds())
	if err != nil {
		return types.Prediction{}, a.fail("inference", err)
	}
	if len(logits) != len(a.labels) {
		return types.Prediction{}, a.fail("inference", fmt.Errorf("model returned %d logits for %d labels", len(logits), len(a.labels)))
	}

	probs := Softmax(logits)
	top := Argmax(logits)
	pred := types.Prediction{
		Label:      a.labels.Reported(top, a.invert),
		Confidence: Percent(probs[top]),
	}
	predictionsTotal.WithLabelValues(pred.Label).Inc()
	a.pub.Publish(Event{Name: EventPrediction, Model: a.model, Fields: map[string]any{
		"result":     pred.Label,
		"confidence": pred.Confidence,
		"top_class":  top,
		"format":     format,
		"dur_ms":     elapsed.Milliseconds(),
	}})
	return pred, nil
}

func (a *Analyzer) fail(stage string, err error) error {
	failuresTotal.WithLabelValues(stage).Inc()
	a.pub.Publish(Event{Name: EventPredictionFailed, Model: a.model, Fields: map[string]any{
		"stage": stage,
		"error": err.Error(),
	}})
	return err
}

// Ready reports whether the analyzer can serve predictions.
func (a *Analyzer) Ready() bool { return a != nil && !a.closed.Load() }

// Labels returns a copy of the model's label map.
func (a *Analyzer) Labels() LabelMap { return append(LabelMap(nil), a.labels...) }

// Target returns the execution target the sessions run on.
func (a *Analyzer) Target() Target { return a.target }

// Model returns the hub name of the loaded model.
func (a *Analyzer) Model() string { return a.model }

// Close waits for in-flight predictions and releases every session.
func (a *Analyzer) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := a.pool.close()
	a.pub.Publish(Event{Name: EventClosed, Model: a.model})
	return err
}
