// Package wire renders the markup fragments pushed over razorwire
// streams. A fragment carries an action, the identifier of the target
// element, and an HTML template body; the client applies the action to
// the target when the fragment arrives. The hub itself treats rendered
// fragments as opaque strings.
package wire

import (
	"html"
	"strings"
)

// Action identifies how the client applies a fragment to its target.
type Action string

const (
	ActionAppend  Action = "append"
	ActionPrepend Action = "prepend"
	ActionReplace Action = "replace"
	ActionUpdate  Action = "update"
	ActionRemove  Action = "remove"
	ActionBefore  Action = "before"
	ActionAfter   Action = "after"
)

// Fragment is a single streaming update.
type Fragment struct {
	Action   Action
	Target   string // id of the DOM element the action applies to
	Template string // HTML body; unused for remove
}

// Render serializes the fragment to its wire form:
//
//	<wire-stream action="append" target="messages"><template>...</template></wire-stream>
//
// Attribute values are escaped; the template body is emitted verbatim,
// since producers supply pre-rendered markup.
func (f Fragment) Render() string {
	var b strings.Builder
	b.WriteString(`<wire-stream action="`)
	b.WriteString(html.EscapeString(string(f.Action)))
	b.WriteString(`" target="`)
	b.WriteString(html.EscapeString(f.Target))
	b.WriteString(`">`)
	if f.Action != ActionRemove {
		b.WriteString("<template>")
		b.WriteString(f.Template)
		b.WriteString("</template>")
	}
	b.WriteString("</wire-stream>")
	return b.String()
}

// Append creates a fragment that appends template inside target.
func Append(target, template string) Fragment {
	return Fragment{Action: ActionAppend, Target: target, Template: template}
}

// Prepend creates a fragment that prepends template inside target.
func Prepend(target, template string) Fragment {
	return Fragment{Action: ActionPrepend, Target: target, Template: template}
}

// Replace creates a fragment that replaces target with template.
func Replace(target, template string) Fragment {
	return Fragment{Action: ActionReplace, Target: target, Template: template}
}

// Update creates a fragment that replaces the contents of target.
func Update(target, template string) Fragment {
	return Fragment{Action: ActionUpdate, Target: target, Template: template}
}

// Remove creates a fragment that removes target.
func Remove(target string) Fragment {
	return Fragment{Action: ActionRemove, Target: target}
}
