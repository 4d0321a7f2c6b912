package tracing

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys for the carpool domain.
const (
	UserIDKey          = attribute.Key("user.id")
	RideIDKey          = attribute.Key("ride.id")
	TemplateIDKey      = attribute.Key("template.id")
	ParticipationIDKey = attribute.Key("participation.id")
	SeatsKey           = attribute.Key("seats.requested")
	AvailableSeatsKey  = attribute.Key("seats.available")
	DecisionKey        = attribute.Key("participation.decision")
	FrequencyTypeKey   = attribute.Key("template.frequency_type")
	OccurrenceCountKey = attribute.Key("template.occurrence_count")
)
