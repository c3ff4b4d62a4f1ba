package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"capscan/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals v to a nullable JSON string.
// nil and empty maps are stored as NULL.
func marshalToNull(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Record Row Scanner
// ============================================================================
//
// Column order must match between recordColumns, scanArgs() and
// insertArgs() (which appends run_id).

// recordRow holds all columns from a record query for scanning
type recordRow struct {
	Cloud    string
	Type     string
	ID       string
	Seq      int
	TenantID sql.NullString
	Data     sql.NullString
}

// recordColumns is the SELECT column list for record queries
const recordColumns = `cloud, type, id, seq, tenant_id, data`

// newRecordRow flattens a record for insertion at position seq
func newRecordRow(rec domain.Record, seq int) (*recordRow, error) {
	id := rec.ObjectID()
	data, err := marshalToNull(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", id, err)
	}
	return &recordRow{
		Cloud:    id.Cloud,
		Type:     string(id.Type),
		ID:       id.ID,
		Seq:      seq,
		TenantID: stringToNull(rec.Owner().Target.ID),
		Data:     data,
	}, nil
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match recordColumns order exactly
func (r *recordRow) scanArgs() []any {
	return []any{
		&r.Cloud,    // 1
		&r.Type,     // 2
		&r.ID,       // 3
		&r.Seq,      // 4
		&r.TenantID, // 5
		&r.Data,     // 6
	}
}

// insertArgs prepares arguments for the record INSERT
func (r *recordRow) insertArgs(runID string) []any {
	return []any{r.Cloud, r.Type, r.ID, r.Seq, r.TenantID, r.Data, runID}
}

// toDomain decodes the stored JSON back into a typed record
func (r *recordRow) toDomain() (domain.Record, error) {
	rec, err := domain.DecodeRecord(domain.ResourceType(r.Type), []byte(nullToString(r.Data)))
	if err != nil {
		return nil, err
	}
	want := domain.NewObjectID(r.Cloud, domain.ResourceType(r.Type), r.ID)
	if got := rec.ObjectID(); got != want {
		return nil, fmt.Errorf("row %s holds record %s", want, got)
	}
	return rec, nil
}
