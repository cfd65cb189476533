package analyzer

import "github.com/rs/zerolog"

// LogPublisher writes events to a zerolog logger. Prediction events are
// logged at debug level, failures at warn, the rest at info.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher { return &LogPublisher{log: l} }

func (p *LogPublisher) Publish(e Event) {
	var ev *zerolog.Event
	switch e.Name {
	case EventPrediction:
		ev = p.log.Debug()
	case EventPredictionFailed:
		ev = p.log.Warn()
	default:
		ev = p.log.Info()
	}
	ev.Str("event", e.Name).Str("model", e.Model).Fields(e.Fields).Msg("analyzer")
}
