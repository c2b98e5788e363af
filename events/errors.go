package events

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/go-errors/errors"
)

var (
	// ErrUnserializable is matched by every error caused by a value that cannot be
	// represented in a serializer's output format.
	ErrUnserializable error = errors.Errorf("unserializable value")

	ErrCycle error = errors.Errorf("cyclic reference")
)

type UnserializableError struct {
	Path string // location of the value, e.g. $.Body.items[2]
	Err  error
}

func (e *UnserializableError) Error() string {
	return fmt.Sprintf("unserializable value at %s: %v", e.Path, e.Err)
}

func (e *UnserializableError) Unwrap() error {
	return e.Err
}

func (e *UnserializableError) Is(target error) bool {
	return target == ErrUnserializable
}

func Unserializable(path string, err error) error {
	return &UnserializableError{Path: path, Err: err}
}

// Visited holds the containers on the current walk path. Maps, slices and *Map values
// are identified by their data pointer.
type Visited map[uintptr]struct{}

// Enter marks container as being walked. It returns false if container is already on the
// path, meaning the value contains itself.
func (v Visited) Enter(container any) bool {
	id, ok := identity(container)
	if !ok {
		return true
	}
	if _, seen := v[id]; seen {
		return false
	}
	v[id] = struct{}{}

	return true
}

func (v Visited) Leave(container any) {
	if id, ok := identity(container); ok {
		delete(v, id)
	}
}

func identity(container any) (uintptr, bool) {
	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	case reflect.Slice:
		if rv.Len() == 0 {
			return 0, false
		}
		return rv.Pointer(), true
	}

	return 0, false
}

// CheckCycles walks v through maps and slices and reports the first value that
// contains itself.
func CheckCycles(v any) error {
	return checkCycles(v, "$", Visited{})
}

func checkCycles(v any, path string, visited Visited) error {
	switch val := v.(type) {
	case *Map:
		if val == nil {
			return nil
		}
		if !visited.Enter(val) {
			return Unserializable(path, ErrCycle)
		}
		defer visited.Leave(val)

		for k, item := range val.All() {
			if err := checkCycles(item, path+"."+k, visited); err != nil {
				return err
			}
		}

	case Mapper:
		if !visited.Enter(val) {
			return Unserializable(path, ErrCycle)
		}
		defer visited.Leave(val)

		return checkCycles(val.ToMap(), path, visited)

	case []any:
		if !visited.Enter(val) {
			return Unserializable(path, ErrCycle)
		}
		defer visited.Leave(val)

		for i, item := range val {
			if err := checkCycles(item, fmt.Sprintf("%s[%d]", path, i), visited); err != nil {
				return err
			}
		}

	case map[string]any:
		if !visited.Enter(val) {
			return Unserializable(path, ErrCycle)
		}
		defer visited.Leave(val)

		for _, k := range slices.Sorted(maps.Keys(val)) {
			if err := checkCycles(val[k], path+"."+k, visited); err != nil {
				return err
			}
		}
	}

	return nil
}
