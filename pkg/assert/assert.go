package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics when v is nil, including typed nil pointers wrapped in interfaces.
func NotNil(v interface{}, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// NotEmpty panics on an empty string.
func NotEmpty(s, name string) {
	if s == "" {
		panic(fmt.Sprintf("%s must not be empty", name))
	}
}
