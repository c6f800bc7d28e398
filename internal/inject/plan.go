package inject

// Action is a mutation kind within a plan.
type Action int

const (
	// ActionInsert places a new fragment relative to an anchor element.
	ActionInsert Action = iota
	// ActionReplace swaps an existing fragment for new markup.
	ActionReplace
	// ActionRemove deletes a fragment.
	ActionRemove
)

// Position says where an inserted fragment lands relative to its anchor.
type Position int

const (
	// PositionPrepend inserts as the anchor's first child.
	PositionPrepend Position = iota
	// PositionAfter inserts as the anchor's next sibling.
	PositionAfter
)

// Op is one DOM mutation. For inserts, Selector plus Index address the
// anchor element (Index disambiguates repeated matches). For replaces and
// removes, Selector addresses the fragment itself by its marker.
type Op struct {
	Action   Action
	Selector string
	Index    int
	Position Position
	HTML     string
}

// Plan is an ordered batch of mutations, applied atomically by the browser
// layer in a single page evaluation.
type Plan struct {
	Ops []Op
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool { return len(p.Ops) == 0 }

func (p *Plan) insert(selector string, index int, pos Position, html string) {
	p.Ops = append(p.Ops, Op{Action: ActionInsert, Selector: selector, Index: index, Position: pos, HTML: html})
}

func (p *Plan) replace(selector, html string) {
	p.Ops = append(p.Ops, Op{Action: ActionReplace, Selector: selector, HTML: html})
}

func (p *Plan) remove(selector string) {
	p.Ops = append(p.Ops, Op{Action: ActionRemove, Selector: selector})
}
