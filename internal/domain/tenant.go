package domain

import "capscan/internal/schema"

// TenantSchema is the field table for identity tenants (projects)
var TenantSchema = schema.New(string(ResourceTenant),
	schema.Field{Name: "object_id", Kind: schema.KindPrimaryKey, Required: true, LoadFrom: "id"},
	schema.Field{Name: "name", Kind: schema.KindString, Required: true},
	schema.Field{Name: "description", Kind: schema.KindString, AllowNull: true},
	schema.Field{Name: "enabled", Kind: schema.KindBoolean, Default: func() any { return true }},
)

// Tenant is an identity project owning other resources
type Tenant struct {
	ID          ObjectID `json:"object_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// LoadTenant validates a raw tenant payload
func LoadTenant(cloud string, raw map[string]any) (*Tenant, error) {
	res, err := TenantSchema.Validate(raw)
	if err != nil {
		return nil, err
	}
	return &Tenant{
		ID:          NewObjectID(cloud, ResourceTenant, res.PrimaryKey),
		Name:        res.String("name"),
		Description: res.String("description"),
		Enabled:     res.Bool("enabled"),
	}, nil
}

func (t *Tenant) ObjectID() ObjectID { return t.ID }

// Owner returns a zero Ref; tenants own themselves
func (t *Tenant) Owner() Ref { return Ref{} }

func (t *Tenant) Dependencies() []Ref { return nil }
