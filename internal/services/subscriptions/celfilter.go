package subsvc

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
)

// celFilter wraps a compiled CEL program evaluated against matched events.
// When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("type", cel.StringType),
		cel.Variable("origin", cel.StringType),
		cel.Variable("target", cel.StringType),
		cel.Variable("priority", cel.StringType),
		// Parsed event payload (map/list/values) for field filtering
		cel.Variable("payload", cel.DynType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against an event. When disabled,
// returns true. Evaluation errors fail closed.
func (f celFilter) Eval(ev *social.Event) bool {
	if !f.enabled {
		return true
	}
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"type":     ev.Type,
		"origin":   ev.OriginUserID,
		"target":   ev.TargetUserID,
		"priority": string(ev.Priority),
		"payload":  payload,
		"now_ms":   time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
