package dataservice

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// DefaultTextFn builds the fallback textual projection used for embedding
// when a service does not supply its own. It concatenates the values of
// T's exported string, pointer-to-string and time fields in declaration
// order, skipping zero values, so two rows with the same user-visible
// content embed identically.
func DefaultTextFn[T any]() func(T) string {
	return func(row T) string {
		var parts []string
		collectText(reflect.ValueOf(row), &parts)
		return strings.Join(parts, " ")
	}
}

func collectText(v reflect.Value, parts *[]string) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)

		switch {
		case f.Anonymous:
			// Embedded bookkeeping (audit timestamps) carries no
			// semantic content worth embedding.
			continue
		case fv.Kind() == reflect.String:
			if s := fv.String(); s != "" {
				*parts = append(*parts, s)
			}
		case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.String:
			if !fv.IsNil() {
				if s := fv.Elem().String(); s != "" {
					*parts = append(*parts, s)
				}
			}
		case fv.Type() == reflect.TypeOf(time.Time{}):
			ts := fv.Interface().(time.Time)
			if !ts.IsZero() {
				*parts = append(*parts, ts.UTC().Format(time.RFC3339))
			}
		case fv.Type() == reflect.TypeOf(&time.Time{}):
			if !fv.IsNil() {
				ts := fv.Interface().(*time.Time)
				if !ts.IsZero() {
					*parts = append(*parts, ts.UTC().Format(time.RFC3339))
				}
			}
		case fv.Kind() == reflect.Bool:
			if fv.Bool() {
				*parts = append(*parts, fmt.Sprintf("%s:true", strings.ToLower(f.Name)))
			}
		}
	}
}
