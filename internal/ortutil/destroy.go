// Package ortutil holds small helpers for releasing engine resources.
package ortutil

import (
	"errors"
	"reflect"
)

// Destroyer is a resource with an explicit, idempotent release.
type Destroyer interface {
	Destroy() error
}

// DestroyAll destroys every resource in order, even after a failure, and
// returns the joined errors. Nil and typed-nil resources are skipped.
func DestroyAll(resources ...Destroyer) error {
	var errs []error
	for _, resource := range resources {
		if isNil(resource) {
			continue
		}
		if err := resource.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isNil(resource Destroyer) bool {
	if resource == nil {
		return true
	}
	value := reflect.ValueOf(resource)
	switch value.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return value.IsNil()
	default:
		return false
	}
}
