package schema

// Result holds the typed values of a validated payload.
// Absent optional fields and explicit nulls read as zero values (or nil
// pointers from the *Ptr getters).
type Result struct {
	Schema     *Schema
	PrimaryKey string

	values map[string]any
	refs   map[string][]string
	nested map[string][]*Result
}

func newResult(s *Schema) *Result {
	return &Result{
		Schema: s,
		values: make(map[string]any),
		refs:   make(map[string][]string),
		nested: make(map[string][]*Result),
	}
}

// Has reports whether a field carries a non-null value
func (r *Result) Has(name string) bool {
	if _, ok := r.values[name]; ok {
		return true
	}
	if _, ok := r.refs[name]; ok {
		return true
	}
	_, ok := r.nested[name]
	return ok
}

// String returns a string field
func (r *Result) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// StringPtr returns a nullable string field
func (r *Result) StringPtr(name string) *string {
	s, ok := r.values[name].(string)
	if !ok {
		return nil
	}
	return &s
}

// Int returns an integer field
func (r *Result) Int(name string) int64 {
	n, _ := r.values[name].(int64)
	return n
}

// IntPtr returns a nullable integer field
func (r *Result) IntPtr(name string) *int64 {
	n, ok := r.values[name].(int64)
	if !ok {
		return nil
	}
	return &n
}

// Bool returns a boolean field
func (r *Result) Bool(name string) bool {
	b, _ := r.values[name].(bool)
	return b
}

// Float returns a float field
func (r *Result) Float(name string) float64 {
	f, _ := r.values[name].(float64)
	return f
}

// Map returns a map field
func (r *Result) Map(name string) map[string]any {
	m, _ := r.values[name].(map[string]any)
	return m
}

// Ref returns the foreign key of a single dependency field
func (r *Result) Ref(name string) (string, bool) {
	keys := r.refs[name]
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

// Refs returns the foreign keys of a many dependency field
func (r *Result) Refs(name string) []string {
	return r.refs[name]
}

// Nested returns the validated sub-results of a nested field
func (r *Result) Nested(name string) []*Result {
	return r.nested[name]
}
