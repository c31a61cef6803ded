package process

import (
	"time"

	"github.com/me/relay/pkg/model"
)

// Event is a unit status change.
type Event struct {
	Name         string
	Status       model.Status
	Result       *model.Result
	DependsOn    string
	DelayMinutes float64
	SkippedBy    string
	FinishedAt   *time.Time
	Duration     time.Duration
}

// Publisher receives every unit status change. Errors are logged by the
// caller and never stop scheduling.
type Publisher interface {
	PublishUnitStatus(ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event) error

// PublishUnitStatus calls f(ev).
func (f PublisherFunc) PublishUnitStatus(ev Event) error {
	return f(ev)
}

// MultiPublisher fans an event out to several publishers. Every publisher is
// called; the first error is returned.
type MultiPublisher []Publisher

// PublishUnitStatus implements Publisher.
func (m MultiPublisher) PublishUnitStatus(ev Event) error {
	var first error
	for _, p := range m {
		if err := p.PublishUnitStatus(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
