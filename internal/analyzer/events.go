package analyzer

// Event represents an analyzer lifecycle or prediction event.
// Minimal and stable: name + model name and optional fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

const (
	EventModelLoaded      = "model_loaded"
	EventPrediction       = "prediction"
	EventPredictionFailed = "prediction_failed"
	EventClosed           = "closed"
)

// EventPublisher receives events from the analyzer. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
