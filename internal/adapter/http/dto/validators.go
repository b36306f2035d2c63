package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeStringRe  = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	orderNumberRe = regexp.MustCompile(`^ORD[0-9]{4,20}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("order_number", validateOrderNumber)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateOrderNumber accepts ORD followed by digits.
func validateOrderNumber(fl validator.FieldLevel) bool {
	return IsOrderNumber(fl.Field().String())
}

// IsOrderNumber reports whether s looks like an order number.
func IsOrderNumber(s string) bool {
	return orderNumberRe.MatchString(s)
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field of a struct pointer, descending into nested structs and slices.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		sanitizeValue(rv.Field(i))
	}
}

func sanitizeValue(f reflect.Value) {
	if !f.CanSet() {
		return
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(sanitize(f.String()))
	case reflect.Ptr:
		if f.IsNil() {
			return
		}
		elem := f.Elem()
		switch elem.Kind() {
		case reflect.String:
			elem.SetString(sanitize(elem.String()))
		case reflect.Struct:
			sanitizeFields(elem)
		}
	case reflect.Struct:
		sanitizeFields(f)
	case reflect.Slice:
		for i := 0; i < f.Len(); i++ {
			sanitizeValue(f.Index(i))
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
