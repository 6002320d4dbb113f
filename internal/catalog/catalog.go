// Package catalog extracts the actions an external artifact currently offers
// and checks clicked labels against them.
package catalog

import (
	"context"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/actionwait/pkg/schema"
)

// buttonLabelsQuery walks the block tree depth-first and emits the display text
// of every button. jq visits array elements in order and object keys sorted.
const buttonLabelsQuery = `[ .. | objects | select(.type == "button") | (.text | if type == "object" then .text else . end) | strings ]`

// Extractor lists the actions offered by an artifact body.
// Thread-safe: the compiled query is built once and reused across goroutines.
type Extractor struct {
	once sync.Once
	code *gojq.Code
	err  error
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) compile() (*gojq.Code, error) {
	e.once.Do(func() {
		query, err := gojq.Parse(buttonLabelsQuery)
		if err != nil {
			e.err = schema.NewErrorf(schema.ErrCodeValidation, "catalog query parse error: %s", err.Error()).WithCause(err)
			return
		}
		// Sandbox: return empty env to block $ENV and env access.
		e.code, e.err = gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
		if e.err != nil {
			e.err = schema.NewErrorf(schema.ErrCodeValidation, "catalog query compile error: %s", e.err.Error()).WithCause(e.err)
		}
	})
	return e.code, e.err
}

// Extract returns every button in body as an Action whose label and value are
// both the button's display text, in document order. Duplicate labels are kept.
// An empty body or a body without buttons yields an empty list.
func (e *Extractor) Extract(ctx context.Context, body []schema.Block) ([]schema.Action, error) {
	actions := []schema.Action{}
	if len(body) == 0 {
		return actions, nil
	}

	code, err := e.compile()
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, normalize(body))
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"extract actions: %s", err.Error()).WithCause(err)
		}
		labels, _ := val.([]any)
		for _, l := range labels {
			label := l.(string)
			actions = append(actions, schema.Action{Label: label, Value: label})
		}
	}
	return actions, nil
}

var defaultExtractor = NewExtractor()

// ExtractActions is Extract on a shared package-level Extractor.
func ExtractActions(ctx context.Context, body []schema.Block) ([]schema.Action, error) {
	return defaultExtractor.Extract(ctx, body)
}

// normalize converts Go values into the plain JSON shapes jq understands.
// Named map/slice types and integers are not recognised by gojq.
func normalize(v any) any {
	switch val := v.(type) {
	case []schema.Block:
		out := make([]any, len(val))
		for i, b := range val {
			out[i] = normalize(b)
		}
		return out
	case schema.Block:
		return normalize(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalize(v)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = normalize(m)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalize(v)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
