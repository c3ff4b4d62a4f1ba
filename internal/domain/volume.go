package domain

import "capscan/internal/schema"

// GiB is the unit the block storage API reports volume sizes in
const GiB = int64(1) << 30

// VolumeSchema is the field table for block storage volumes
var VolumeSchema = schema.New(string(ResourceVolume),
	schema.Field{Name: "object_id", Kind: schema.KindPrimaryKey, Required: true, LoadFrom: "id"},
	schema.Field{Name: "name", Kind: schema.KindString, Required: true, AllowNull: true},
	schema.Field{Name: "tenant", Kind: schema.KindDependency, Required: true, LoadFrom: "tenant_id", Target: string(ResourceTenant)},
	schema.Field{Name: "size", Kind: schema.KindInteger, Required: true},
	schema.Field{Name: "status", Kind: schema.KindString, Required: true},
	schema.Field{Name: "volume_type", Kind: schema.KindString, AllowNull: true},
	schema.Field{Name: "bootable", Kind: schema.KindBoolean, Default: func() any { return false }},
	schema.Field{Name: "metadata", Kind: schema.KindMap},
)

// Volume is a block storage volume. Size is in bytes.
type Volume struct {
	ID         ObjectID       `json:"object_id"`
	Name       string         `json:"name"`
	Tenant     Ref            `json:"tenant"`
	Size       int64          `json:"size"`
	Status     string         `json:"status"`
	VolumeType string         `json:"volume_type,omitempty"`
	Bootable   bool           `json:"bootable"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LoadVolume validates a raw volume payload. The API size in GiB is
// converted to bytes.
func LoadVolume(cloud string, raw map[string]any) (*Volume, error) {
	res, err := VolumeSchema.Validate(raw)
	if err != nil {
		return nil, err
	}

	tenant, _ := res.Ref("tenant")
	return &Volume{
		ID:         NewObjectID(cloud, ResourceVolume, res.PrimaryKey),
		Name:       res.String("name"),
		Tenant:     NewRef(cloud, ResourceTenant, tenant),
		Size:       res.Int("size") * GiB,
		Status:     res.String("status"),
		VolumeType: res.String("volume_type"),
		Bootable:   res.Bool("bootable"),
		Metadata:   res.Map("metadata"),
	}, nil
}

func (v *Volume) ObjectID() ObjectID { return v.ID }

func (v *Volume) Owner() Ref { return v.Tenant }

func (v *Volume) Dependencies() []Ref { return []Ref{v.Tenant} }
