package logging

import (
	"context"

	"github.com/rs/zerolog"

	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/activitymap"
)

// ActivitySink writes normalized activity events as audit log entries
type ActivitySink struct {
	log  zerolog.Logger
	opts []activitymap.Option
}

var _ account.ActivitySink = (*ActivitySink)(nil)

func NewActivitySink(log zerolog.Logger, opts ...activitymap.Option) *ActivitySink {
	return &ActivitySink{
		log:  log.With().Str("component", "audit").Logger(),
		opts: opts,
	}
}

func (s *ActivitySink) Record(_ context.Context, event account.ActivityEvent) error {
	n := activitymap.Normalize(event, s.opts...)

	e := s.log.Info().
		Str("actor_id", n.ActorID).
		Str("verb", n.Verb).
		Str("object_type", n.ObjectType).
		Str("channel", n.Channel).
		Time("occurred_at", n.OccurredAt)

	if n.ObjectID != "" {
		e = e.Str("object_id", n.ObjectID)
	}
	if len(n.Metadata) > 0 {
		e = e.Interface("metadata", n.Metadata)
	}

	e.Msg("activity")
	return nil
}
