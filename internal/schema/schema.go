package schema

import "fmt"

// Kind is the semantic type of a schema field
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindBoolean
	KindFloat
	KindMap
	// KindPrimaryKey supplies the record's ObjectID. At most one per schema.
	KindPrimaryKey
	// KindDependency holds a foreign primary key of another resource type.
	KindDependency
	// KindNested holds a sequence of owned sub-payloads validated against Field.Nested.
	KindNested
)

// String returns the kind name used in error messages
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindFloat:
		return "float"
	case KindMap:
		return "map"
	case KindPrimaryKey:
		return "primary key"
	case KindDependency:
		return "dependency"
	case KindNested:
		return "nested"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one declared field of a record schema
type Field struct {
	// Name is the validated field name
	Name string
	Kind Kind
	// Required fields must be present in the raw payload
	Required bool
	// AllowNull accepts an explicit nil for the field
	AllowNull bool
	// Default supplies the value of an absent optional field
	Default func() any
	// LoadFrom is the raw payload key, when it differs from Name
	LoadFrom string
	// Target is the resource type a dependency points at
	Target string
	// Many marks a dependency holding a list of foreign keys
	Many bool
	// Nested is the sub-schema of a nested field
	Nested *Schema
}

// Key returns the raw payload key this field is read from
func (f Field) Key() string {
	if f.LoadFrom != "" {
		return f.LoadFrom
	}
	return f.Name
}

// Schema is a static field-descriptor table for one record type
type Schema struct {
	Name   string
	Fields []Field
	pk     int
}

// New builds a schema from its field table.
// It panics when the table declares more than one primary key or a nested
// field without a sub-schema; schema tables are package-level values, so
// these are programming errors caught at init.
func New(name string, fields ...Field) *Schema {
	s := &Schema{Name: name, Fields: fields, pk: -1}
	for i, f := range fields {
		switch f.Kind {
		case KindPrimaryKey:
			if s.pk >= 0 {
				panic(fmt.Sprintf("schema %s: duplicate primary key %s", name, f.Name))
			}
			s.pk = i
		case KindNested:
			if f.Nested == nil {
				panic(fmt.Sprintf("schema %s: nested field %s has no sub-schema", name, f.Name))
			}
		case KindDependency:
			if f.Target == "" {
				panic(fmt.Sprintf("schema %s: dependency %s has no target", name, f.Name))
			}
		}
	}
	return s
}

// PrimaryKey returns the primary key field, if the schema declares one
func (s *Schema) PrimaryKey() (Field, bool) {
	if s.pk < 0 {
		return Field{}, false
	}
	return s.Fields[s.pk], true
}

// Field looks up a field by its validated name
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// EmptyList is a Default for nested fields that are absent
func EmptyList() any {
	return []any{}
}
