package config

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	typesMu sync.RWMutex
	types   = map[string]reflect.Type{
		"any":     reflect.TypeOf((*any)(nil)).Elem(),
		"string":  reflect.TypeOf(""),
		"int":     reflect.TypeOf(int(0)),
		"int64":   reflect.TypeOf(int64(0)),
		"uint64":  reflect.TypeOf(uint64(0)),
		"float64": reflect.TypeOf(float64(0)),
		"bool":    reflect.TypeOf(false),
		"bytes":   reflect.TypeOf([]byte(nil)),
	}
)

// RegisterType makes a named type available to key-type and value-type
// declarations. Registering an existing name overwrites it.
func RegisterType(name string, t reflect.Type) {
	typesMu.Lock()
	defer typesMu.Unlock()
	types[name] = t
}

func keyType(name string) (reflect.Type, error) {
	t, err := valueType(name)
	if err != nil {
		return nil, err
	}
	if !t.Comparable() {
		return nil, fmt.Errorf("key type %q is not comparable", name)
	}
	return t, nil
}

func valueType(name string) (reflect.Type, error) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	t, ok := types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q, register it with RegisterType", name)
	}
	return t, nil
}
