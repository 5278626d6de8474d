package report

import (
	"strconv"

	"github.com/sentrykit/sentrykit/crashctx"
	"github.com/sentrykit/sentrykit/introspect"
)

// maxNotableDepth bounds the recursive descent into classified objects
// (e.g. an array's first element, itself classified and possibly another
// array), per spec.md §4.E: "every recursive descent decrements a shared
// limit initialized to 15; recursion stops at zero."
const maxNotableDepth = 15

// writeNotableAddresses writes the crashed thread's "notable_addresses"
// object: one entry per register or stack slot whose value names a live
// interpretable object, per spec.md §4.E.
func writeNotableAddresses(w encoder, classifier introspect.ObjectClassifier, policy *crashctx.IntrospectionPolicy, registers []introspect.Register, stackSlots []uint64) {
	w.BeginObject("notable_addresses")
	defer w.EndContainer()

	if classifier == nil || policy == nil || !policy.Enabled {
		return
	}

	for _, reg := range registers {
		writeNotableCandidate(w, classifier, policy, reg.Name, reg.Value, maxNotableDepth)
	}
	for i, addr := range stackSlots {
		writeNotableCandidate(w, classifier, policy, stackSlotName(i), addr, maxNotableDepth)
	}
}

func stackSlotName(i int) string {
	return "stack_" + strconv.Itoa(i)
}

// writeNotableCandidate classifies addr and, if it names a live object,
// writes its interpretation keyed by name. limit bounds recursive descent
// into the object's own referenced addresses (e.g. an array's element).
func writeNotableCandidate(w encoder, classifier introspect.ObjectClassifier, policy *crashctx.IntrospectionPolicy, name string, addr uint64, limit int) {
	if limit <= 0 || addr == 0 {
		return
	}

	obj, err := classifier.Classify(addr)
	if err != nil || obj.Kind == introspect.KindNone {
		return
	}

	w.BeginObject(name)
	defer w.EndContainer()

	writeClassifiedObject(w, classifier, policy, obj, limit)
}

func writeClassifiedObject(w encoder, classifier introspect.ObjectClassifier, policy *crashctx.IntrospectionPolicy, obj introspect.Object, limit int) {
	switch obj.Kind {
	case introspect.KindNull:
		w.AddString("type", "null")
		return
	case introspect.KindGenericClass:
		w.AddString("type", "class")
		w.AddString("class", obj.ClassName)
		return
	}

	w.AddUint("address", obj.Address)

	if policy.IsRestricted(obj.ClassName) {
		w.AddString("class", obj.ClassName)
		w.AddString("type", "restricted")
		return
	}

	switch obj.Kind {
	case introspect.KindString:
		w.AddString("type", "string")
		w.AddString("value", truncate(obj.Value, 200))
	case introspect.KindURL:
		w.AddString("type", "url")
		w.AddString("value", obj.Value)
	case introspect.KindDate, introspect.KindNumber:
		w.AddString("type", kindName(obj.Kind))
		w.AddString("value", obj.Value)
	case introspect.KindArray:
		w.AddString("type", "array")
		if obj.HasElement {
			w.BeginObject("first_element")
			writeNotableCandidate(w, classifier, policy, "value", obj.ElementAddr, limit-1)
			w.EndContainer()
		}
	case introspect.KindGenericObject, introspect.KindDictionary, introspect.KindException:
		w.AddString("type", kindName(obj.Kind))
		w.AddString("class", obj.ClassName)
		w.BeginArray("ivars")
		for _, f := range obj.Fields {
			w.BeginObjectUnnamed()
			w.AddString("name", f.Name)
			w.AddString("value", f.Value)
			w.EndContainer()
		}
		w.EndContainer()
	}
}

func kindName(k introspect.ObjectKind) string {
	switch k {
	case introspect.KindDate:
		return "date"
	case introspect.KindNumber:
		return "number"
	case introspect.KindGenericObject:
		return "object"
	case introspect.KindDictionary:
		return "dictionary"
	case introspect.KindException:
		return "exception"
	default:
		return "unknown"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
