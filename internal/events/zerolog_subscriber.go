package events

import (
	"github.com/rs/zerolog"

	"github.com/mlldlang/guardcore/pkg/secmodel"
)

// NewZerologSubscriber returns a Handler that logs every event at the given
// level, mirroring this pack's log.Info().Str(...).Msg(...) chaining style.
func NewZerologSubscriber(logger zerolog.Logger, level zerolog.Level) Handler {
	return func(ev Event) {
		evt := logger.WithLevel(level).
			Str("kind", string(ev.Kind)).
			Time("ts", ev.Timestamp)

		switch p := ev.Payload.(type) {
		case GuardBeforePayload:
			evt = evt.Str("guard", p.GuardName).Str("op", opLabel(p.Operation))
		case GuardAfterPayload:
			evt = evt.Str("guard", p.GuardName).Str("decision", string(p.Decision)).Str("reason", p.Reason)
		case DirectiveStartPayload:
			evt = evt.Str("directive", p.Name)
		case DirectiveCompletePayload:
			evt = evt.Str("directive", p.Name).Dur("duration", p.Duration)
		case VariableCreatePayload:
			evt = evt.Str("variable", p.Name).Str("varKind", p.Kind)
		case VariableAccessPayload:
			evt = evt.Str("variable", p.Name)
		case ExportRegisteredPayload:
			evt = evt.Str("export", p.Name)
		case ImportDynamicPayload:
			evt = evt.Str("source", p.Source)
		}

		evt.Msg("guard event")
	}
}

func opLabel(op secmodel.OperationContext) string {
	if op.Subtype != "" {
		return op.Type + ":" + op.Subtype
	}
	return op.Type
}
