package schema

import (
	"sort"
	"sync"
)

// TypeDescriptor describes what the engine knows how to do with a field
// type. Field types are open strings, not a closed enum: a type the registry
// has never seen resolves to a graceful fallback descriptor instead of
// failing the form.
type TypeDescriptor struct {
	Name string
	// ZeroValue is the "no input yet" value for the type.
	ZeroValue any
	// Multi marks types whose value is a slice.
	Multi bool
	// Known is false on the fallback descriptor returned for unregistered
	// types; renderers should skip such fields and warn rather than error.
	Known bool
}

var (
	typeRegistryMu sync.RWMutex
	typeRegistry   = map[string]TypeDescriptor{}
)

func init() {
	for _, d := range []TypeDescriptor{
		{Name: "text", ZeroValue: ""},
		{Name: "textarea", ZeroValue: ""},
		{Name: "email", ZeroValue: ""},
		{Name: "phone", ZeroValue: ""},
		{Name: "url", ZeroValue: ""},
		{Name: "password", ZeroValue: ""},
		{Name: "number", ZeroValue: float64(0)},
		{Name: "slider", ZeroValue: float64(0)},
		{Name: "rating", ZeroValue: float64(0)},
		{Name: "checkbox", ZeroValue: false},
		{Name: "select", ZeroValue: ""},
		{Name: "radio", ZeroValue: ""},
		{Name: "date", ZeroValue: ""},
		{Name: "file", ZeroValue: ""},
		{Name: "multiselect", ZeroValue: []any(nil), Multi: true},
		{Name: "tags", ZeroValue: []any(nil), Multi: true},
	} {
		d.Known = true
		typeRegistry[d.Name] = d
	}
}

// RegisterType adds or replaces a field type descriptor. It allows embedders
// to introduce new widget types without touching the engine.
func RegisterType(d TypeDescriptor) {
	d.Known = true
	typeRegistryMu.Lock()
	typeRegistry[d.Name] = d
	typeRegistryMu.Unlock()
}

// LookupType resolves a field type string. Unregistered types return a
// fallback descriptor with Known=false.
func LookupType(name string) TypeDescriptor {
	typeRegistryMu.RLock()
	d, ok := typeRegistry[name]
	typeRegistryMu.RUnlock()
	if ok {
		return d
	}
	return TypeDescriptor{Name: name, ZeroValue: nil}
}

// KnownTypes lists the registered type names, sorted.
func KnownTypes() []string {
	typeRegistryMu.RLock()
	names := make([]string, 0, len(typeRegistry))
	for name := range typeRegistry {
		names = append(names, name)
	}
	typeRegistryMu.RUnlock()
	sort.Strings(names)
	return names
}
