package collective

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	customEncoderType   = reflect.TypeFor[msgpack.CustomEncoder]()
	marshalerType       = reflect.TypeFor[msgpack.Marshaler]()
	binaryMarshalerType = reflect.TypeFor[encoding.BinaryMarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
)

// checkTransferable reports whether values of t survive a msgpack round trip unchanged.
// Channels, functions and unsafe pointers cannot be encoded, and unexported struct fields
// would be dropped silently. Interface types are checked per value, at encoding time.
func checkTransferable(t reflect.Type) error {
	return walkTransferable(t, t.String(), make(map[reflect.Type]bool))
}

func walkTransferable(t reflect.Type, path string, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true

	if encodesItself(t) {
		return nil
	}

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("%w: %s has untransferable type %s", ErrSerialization, path, t)
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return walkTransferable(t.Elem(), path, seen)
	case reflect.Map:
		if err := walkTransferable(t.Key(), path+"[key]", seen); err != nil {
			return err
		}
		return walkTransferable(t.Elem(), path+"[value]", seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Tag.Get("msgpack") == "-" {
				continue
			}
			if f.Anonymous {
				if err := walkTransferable(f.Type, path+"."+f.Name, seen); err != nil {
					return err
				}
				continue
			}
			if !f.IsExported() {
				return fmt.Errorf("%w: %s has unexported field %s", ErrSerialization, path, f.Name)
			}
			if err := walkTransferable(f.Type, path+"."+f.Name, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodesItself reports whether t (or *t) controls its own msgpack encoding.
func encodesItself(t reflect.Type) bool {
	for _, it := range []reflect.Type{customEncoderType, marshalerType, binaryMarshalerType, textMarshalerType} {
		if t.Implements(it) || (t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(it)) {
			return true
		}
	}
	return false
}
