package serial

import (
	"fmt"
	"reflect"
)

// TypeKey identifies a polymorphic type on the wire as the pair the
// original calls (protocol_id, type_id): a small namespace byte plus a
// type number scoped to that namespace.
type TypeKey struct {
	ProtocolID uint8
	TypeID     uint8
}

// StoreFunc serializes a concrete value (already known to be of the
// registered Go type) onto s.
type StoreFunc func(s *Serializer, v interface{}) error

// LoadFunc allocates a new instance of the registered Go type and
// deserializes it from d, returning the instance as an interface{}.
type LoadFunc func(d *Deserializer) (interface{}, error)

type typeEntry struct {
	key   TypeKey
	typ   reflect.Type
	store StoreFunc
	load  LoadFunc
}

// TypeIDMap is the polymorphic type registry: built once at service start
// and treated as read-only afterwards, so concurrent lookups from many
// reactor threads need no locking (spec 4.6: "built at service start and
// frozen; reads are lock-free").
type TypeIDMap struct {
	byType map[reflect.Type]*typeEntry
	byKey  map[TypeKey]*typeEntry

	// cast records, for a derived type registered via RegisterCast, its
	// base type. Lookups do not read it.
	cast map[reflect.Type]reflect.Type
}

// NewTypeIDMap constructs an empty registry.
func NewTypeIDMap() *TypeIDMap {
	return &TypeIDMap{
		byType: make(map[reflect.Type]*typeEntry),
		byKey:  make(map[TypeKey]*typeEntry),
		cast:   make(map[reflect.Type]reflect.Type),
	}
}

// Register associates the concrete Go type of sample with key, along with
// the store/load callbacks used to (de)serialize it.
//
// sample is used only to capture sample's reflect.Type; its value is
// discarded.
func (m *TypeIDMap) Register(sample interface{}, key TypeKey, store StoreFunc, load LoadFunc) error {
	t := reflect.TypeOf(sample)

	if _, exists := m.byKey[key]; exists {
		return fmt.Errorf("serial: type key %+v already registered", key)
	}

	e := &typeEntry{key: key, typ: t, store: store, load: load}
	m.byType[t] = e
	m.byKey[key] = e
	return nil
}

// RegisterCast records derivedSample's type against baseSample's, mirroring
// the original's registerCast<Derived, Base>. Lookups do not consult these
// records: lookupByValue already resolves every value by its concrete
// dynamic type, whatever type it was statically held as.
func (m *TypeIDMap) RegisterCast(derivedSample, baseSample interface{}) {
	derived := reflect.TypeOf(derivedSample)
	base := reflect.TypeOf(baseSample)
	m.cast[derived] = base
}

// lookupByValue resolves the entry to use for serializing v by v's
// concrete dynamic type; casts recorded by RegisterCast are not consulted.
func (m *TypeIDMap) lookupByValue(v interface{}) (*typeEntry, error) {
	t := reflect.TypeOf(v)
	if e, ok := m.byType[t]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("serial: no type entry registered for %s", t)
}

// lookupByKey resolves the entry for an incoming (protocol_id, type_id)
// pair read off the wire.
func (m *TypeIDMap) lookupByKey(key TypeKey) (*typeEntry, error) {
	e, ok := m.byKey[key]
	if !ok {
		return nil, fmt.Errorf(
			"serial: unknown polymorphic type key %+v", key,
		)
	}
	return e, nil
}
