package hoard

import "reflect"

// typeOf returns the runtime type for a type parameter. Unlike
// reflect.TypeOf on a value, it can produce interface types.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// typeGuard enforces the declared key and value classes at every
// operation boundary. The declared classes are runtime values, not
// compile-time parameters: a store instantiated over interface type
// parameters can be narrowed to concrete declared classes (the
// declarative configuration path does exactly that), so the check must
// happen at runtime even though the store is generic.
type typeGuard struct {
	key   reflect.Type
	value reflect.Type
}

func (g typeGuard) checkKey(key any) error {
	return g.check("key", g.key, key)
}

func (g typeGuard) checkValue(value any) error {
	return g.check("value", g.value, value)
}

func (g typeGuard) check(kind string, want reflect.Type, v any) error {
	got := reflect.TypeOf(v)
	if got == nil {
		return &WrongTypeError{Kind: kind, Expected: want}
	}
	if got == want || got.AssignableTo(want) {
		return nil
	}
	return &WrongTypeError{Kind: kind, Expected: want, Actual: got}
}
