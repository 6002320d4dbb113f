// Package artifact rewrites the external artifact a wait is attached to once
// the wait resolves.
package artifact

import (
	"fmt"

	"github.com/rendis/actionwait/pkg/schema"
)

// ExpiredText is the status line appended when the window to act has passed.
const ExpiredText = "Action window has expired, no further actions can be taken."

// interactiveElements are element types that let a user act on the artifact.
var interactiveElements = map[string]bool{
	"button":                     true,
	"overflow":                   true,
	"static_select":              true,
	"external_select":            true,
	"users_select":               true,
	"conversations_select":       true,
	"channels_select":            true,
	"multi_static_select":        true,
	"multi_external_select":      true,
	"multi_users_select":         true,
	"multi_conversations_select": true,
	"multi_channels_select":      true,
	"datepicker":                 true,
	"timepicker":                 true,
	"datetimepicker":             true,
	"checkboxes":                 true,
	"radio_buttons":              true,
	"workflow_button":            true,
}

// Terminal describes how a wait resolved, for rendering the status line.
type Terminal struct {
	Expired bool
	Actor   string
	Action  string
}

// Accepted returns the terminal state for a matching click.
func Accepted(actor, action string) Terminal {
	return Terminal{Actor: actor, Action: action}
}

// Expired returns the terminal state for a wait whose deadline passed.
func Expired() Terminal {
	return Terminal{Expired: true}
}

// StatusText renders the status line for t.
func (t Terminal) StatusText() string {
	if t.Expired {
		return ExpiredText
	}
	if t.Actor == "" {
		return fmt.Sprintf("Action received, clicked on '%s'", t.Action)
	}
	return fmt.Sprintf("Action received, user @%s clicked on '%s'", t.Actor, t.Action)
}

// IsControlContainer reports whether b exists only to hold interactive controls.
func IsControlContainer(b schema.Block) bool {
	return b.Type() == schema.BlockTypeActions
}

// isInteractive reports whether v is an element a user can act on.
func isInteractive(v map[string]any) bool {
	t, _ := v["type"].(string)
	return interactiveElements[t]
}

// stripControls returns m without any interactive element found at any depth,
// and whether anything was removed. m is returned as is when nothing was.
func stripControls(m map[string]any) (map[string]any, bool) {
	var out map[string]any
	for k, v := range m {
		nv, drop, changed := stripValue(v)
		if !changed {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(m))
			for kk, vv := range m {
				out[kk] = vv
			}
		}
		if drop {
			delete(out, k)
		} else {
			out[k] = nv
		}
	}
	if out == nil {
		return m, false
	}
	return out, true
}

func stripList(xs []any) ([]any, bool) {
	var out []any
	for i, x := range xs {
		nx, drop, changed := stripValue(x)
		if changed && out == nil {
			out = make([]any, i, len(xs))
			copy(out, xs[:i])
		}
		if out == nil || drop {
			continue
		}
		out = append(out, nx)
	}
	if out == nil {
		return xs, false
	}
	return out, true
}

// stripValue reports the stripped value, whether v itself must go, and
// whether anything changed.
func stripValue(v any) (any, bool, bool) {
	switch x := v.(type) {
	case map[string]any:
		if isInteractive(x) {
			return nil, true, true
		}
		nm, changed := stripControls(x)
		return nm, false, changed
	case schema.Block:
		return stripValue(map[string]any(x))
	case []any:
		nl, changed := stripList(x)
		return nl, false, changed
	}
	return v, false, false
}

// emptied reports whether stripping left a block that held elements with none.
func emptied(before, after map[string]any) bool {
	was, _ := before["elements"].([]any)
	now, _ := after["elements"].([]any)
	return len(was) > 0 && len(now) == 0
}

// ApplyTerminal returns a copy of body with every control container removed,
// every interactive element stripped wherever it sits in the remaining blocks,
// and exactly one status block appended. A block whose elements were all
// interactive is dropped. body itself is left untouched.
func ApplyTerminal(body []schema.Block, t Terminal) []schema.Block {
	out := make([]schema.Block, 0, len(body)+1)
	for _, b := range body {
		if IsControlContainer(b) || isInteractive(b) {
			continue
		}
		kept, changed := stripControls(b)
		if changed && emptied(b, kept) {
			continue
		}
		out = append(out, schema.Block(kept))
	}
	return append(out, StatusBlock(t))
}

// StatusBlock renders t as a markdown section block.
func StatusBlock(t Terminal) schema.Block {
	return schema.Block{
		"type": schema.BlockTypeSection,
		"text": map[string]any{
			"type": schema.TextTypeMarkdown,
			"text": t.StatusText(),
		},
	}
}
