// Handles column derivation from row types.

package jsonldb

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ColumnType is the storage type of a column.
type ColumnType string

// Column types.
const (
	ColumnTypeText   ColumnType = "text"
	ColumnTypeNumber ColumnType = "number"
	ColumnTypeBool   ColumnType = "bool"
	ColumnTypeDate   ColumnType = "date"
	ColumnTypeJSON   ColumnType = "json"
)

// Column describes one persisted field of a row type.
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Required bool       `json:"required,omitempty"`
}

// Columns extracts column definitions from T using JSON Schema reflection.
//
// Fields tagged omitempty are optional. Relationship fields show up as json
// columns; callers that persist flat rows skip them.
func Columns[T any]() ([]Column, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}

	// The root is expanded in place; nested types stay references, which keeps
	// self-referencing row types finite.
	r := jsonschema.Reflector{Anonymous: true, ExpandedStruct: true}
	schema := r.ReflectFromType(t)

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	fields := make(map[string]reflect.Type, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		fields[jsonFieldName(&field)] = field.Type
	}

	var columns []Column
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		colType := ColumnTypeText
		if ft, ok := fields[pair.Key]; ok {
			colType = goTypeToColumnType(ft)
		}
		columns = append(columns, Column{
			Name:     pair.Key,
			Type:     colType,
			Required: required[pair.Key],
		})
	}
	return columns, nil
}

// RequireColumns returns an error if T lacks any of the named columns.
func RequireColumns[T any](names ...string) error {
	cols, err := Columns[T]()
	if err != nil {
		return err
	}
	for _, name := range names {
		found := false
		for _, c := range cols {
			if c.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s has no %q column", reflect.TypeFor[T](), name)
		}
	}
	return nil
}

func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func goTypeToColumnType(t reflect.Type) ColumnType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == reflect.TypeFor[time.Time]() {
		return ColumnTypeDate
	}
	switch t.Kind() {
	case reflect.String:
		return ColumnTypeText
	case reflect.Bool:
		return ColumnTypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return ColumnTypeNumber
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return ColumnTypeJSON
	default:
		return ColumnTypeText
	}
}
