package introspect

// ObjectKind is the classifier's verdict for a candidate pointer.
type ObjectKind int

const (
	// KindNone means addr does not name a live interpretable object.
	KindNone ObjectKind = iota
	KindNull
	KindGenericClass
	KindGenericObject
	KindString
	KindArray
	KindNumber
	KindDate
	KindURL
	// KindDictionary and KindException are recognised kinds the original
	// implementation's notable-address walk never finished wiring up
	// (original_source/ leaves them as TODO, falling through to the
	// generic ivar dump); see spec.md §9 Open Questions and
	// report/notable.go.
	KindDictionary
	KindException
)

// Object is a classified pointer's resolved shape, as much as the
// classifier is willing to reveal (an object of a restricted class still
// classifies, but Classify's caller is expected to honor
// crashctx.IntrospectionPolicy.IsRestricted and omit Value/Fields itself).
type Object struct {
	Kind      ObjectKind
	Address   uint64
	ClassName string
	// Value holds the short scalar rendering for string/number/date/url
	// kinds (e.g. a string's first 200 bytes, a url's target, a date's or
	// number's float64 value formatted as text).
	Value string
	// ElementAddr is the first element's address, for KindArray, so the
	// caller can recurse.
	ElementAddr uint64
	HasElement  bool
	// Fields is the flattened instance-field view used for
	// KindGenericObject and the dictionary/exception fallthrough.
	Fields []Field
}

// Field is one instance field in a flattened ivar dump.
type Field struct {
	Name  string
	Value string
}

// ObjectClassifier classifies an arbitrary memory address as a live
// interpretable object, per spec.md §1's "object classifier" external
// collaborator and §4.E's notable-address algorithm.
type ObjectClassifier interface {
	Classify(addr uint64) (Object, error)
}
