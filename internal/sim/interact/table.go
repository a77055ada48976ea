package interact

import "sort"

// Handler is one interaction variant for one object kind. Will must not mutate state.
type Handler struct {
	Will    func(Request) bool
	Perform func(Request)
}

type Outcome int

const (
	NoHandler Outcome = iota
	NotEligible
	Performed
)

func (o Outcome) String() string {
	switch o {
	case Performed:
		return "PERFORMED"
	case NotEligible:
		return "NOT_ELIGIBLE"
	default:
		return "NO_HANDLER"
	}
}

type key struct {
	kind       Kind
	objectKind string
}

// Table maps (request kind, object kind) to handlers.
type Table struct {
	// KindOf resolves the object kind of an object id; "" means unknown.
	KindOf func(id string) string
	// Default runs before any handler, mirroring the generic reach/consciousness checks.
	Default func(Request) bool

	handlers map[key]Handler
}

func NewTable(kindOf func(id string) string, def func(Request) bool) *Table {
	return &Table{KindOf: kindOf, Default: def, handlers: map[key]Handler{}}
}

func (t *Table) Register(kind Kind, objectKind string, h Handler) {
	if h.Perform == nil {
		return
	}
	t.handlers[key{kind: kind, objectKind: objectKind}] = h
}

func (t *Table) Lookup(kind Kind, objectKind string) (Handler, bool) {
	h, ok := t.handlers[key{kind: kind, objectKind: objectKind}]
	return h, ok
}

// Kinds lists registered request kinds for an object kind, sorted.
func (t *Table) Kinds(objectKind string) []Kind {
	var out []Kind
	for k := range t.handlers {
		if k.objectKind == objectKind {
			out = append(out, k.kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch checks eligibility and applies the request when eligible.
func (t *Table) Dispatch(req Request) Outcome {
	subject := req.Subject()
	if subject == "" || t.KindOf == nil {
		return NoHandler
	}
	h, ok := t.Lookup(req.Kind, t.KindOf(subject))
	if !ok {
		return NoHandler
	}
	if t.Default != nil && !t.Default(req) {
		return NotEligible
	}
	if h.Will != nil && !h.Will(req) {
		return NotEligible
	}
	h.Perform(req)
	return Performed
}
