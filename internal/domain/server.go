package domain

import "capscan/internal/schema"

// EphemeralDiskSchema is the field table for server-local disks
var EphemeralDiskSchema = schema.New(string(ResourceEphemeralDisk),
	schema.Field{Name: "path", Kind: schema.KindString, Required: true},
	schema.Field{Name: "size", Kind: schema.KindInteger, Required: true},
	schema.Field{Name: "format", Kind: schema.KindString, AllowNull: true},
)

// ServerSchema is the field table for compute servers
var ServerSchema = schema.New(string(ResourceServer),
	schema.Field{Name: "object_id", Kind: schema.KindPrimaryKey, Required: true, LoadFrom: "id"},
	schema.Field{Name: "name", Kind: schema.KindString, Required: true},
	schema.Field{Name: "tenant", Kind: schema.KindDependency, Required: true, LoadFrom: "tenant_id", Target: string(ResourceTenant)},
	schema.Field{Name: "status", Kind: schema.KindString, Required: true},
	schema.Field{Name: "flavor", Kind: schema.KindString, LoadFrom: "flavor_id", AllowNull: true},
	schema.Field{Name: "host", Kind: schema.KindString, AllowNull: true},
	schema.Field{Name: "image", Kind: schema.KindDependency, LoadFrom: "image_id", AllowNull: true, Target: string(ResourceImage)},
	schema.Field{Name: "attached_volumes", Kind: schema.KindDependency, LoadFrom: "volume_ids", Many: true, Target: string(ResourceVolume), Default: schema.EmptyList},
	schema.Field{Name: "ephemeral_disks", Kind: schema.KindNested, Nested: EphemeralDiskSchema, Default: schema.EmptyList},
	schema.Field{Name: "metadata", Kind: schema.KindMap},
)

// EphemeralDisk is a disk owned by exactly one server. Size is in bytes.
type EphemeralDisk struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Format string `json:"format,omitempty"`
}

// Server is a compute instance
type Server struct {
	ID              ObjectID        `json:"object_id"`
	Name            string          `json:"name"`
	Tenant          Ref             `json:"tenant"`
	Status          string          `json:"status"`
	Flavor          string          `json:"flavor,omitempty"`
	Host            string          `json:"host,omitempty"`
	Image           *Ref            `json:"image"`
	AttachedVolumes []Ref           `json:"attached_volumes"`
	EphemeralDisks  []EphemeralDisk `json:"ephemeral_disks"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// LoadEphemeralDisk validates a raw ephemeral disk entry
func LoadEphemeralDisk(raw map[string]any) (EphemeralDisk, error) {
	res, err := EphemeralDiskSchema.Validate(raw)
	if err != nil {
		return EphemeralDisk{}, err
	}
	return ephemeralDiskFrom(res), nil
}

func ephemeralDiskFrom(res *schema.Result) EphemeralDisk {
	return EphemeralDisk{
		Path:   res.String("path"),
		Size:   res.Int("size"),
		Format: res.String("format"),
	}
}

// LoadServer validates a raw server payload, including any inline disks
func LoadServer(cloud string, raw map[string]any) (*Server, error) {
	res, err := ServerSchema.Validate(raw)
	if err != nil {
		return nil, err
	}

	tenant, _ := res.Ref("tenant")
	srv := &Server{
		ID:              NewObjectID(cloud, ResourceServer, res.PrimaryKey),
		Name:            res.String("name"),
		Tenant:          NewRef(cloud, ResourceTenant, tenant),
		Status:          res.String("status"),
		Flavor:          res.String("flavor"),
		Host:            res.String("host"),
		AttachedVolumes: make([]Ref, 0),
		EphemeralDisks:  make([]EphemeralDisk, 0),
		Metadata:        res.Map("metadata"),
	}
	if image, ok := res.Ref("image"); ok {
		ref := NewRef(cloud, ResourceImage, image)
		srv.Image = &ref
	}
	for _, key := range res.Refs("attached_volumes") {
		srv.AttachedVolumes = append(srv.AttachedVolumes, NewRef(cloud, ResourceVolume, key))
	}
	for _, d := range res.Nested("ephemeral_disks") {
		srv.EphemeralDisks = append(srv.EphemeralDisks, ephemeralDiskFrom(d))
	}
	return srv, nil
}

func (s *Server) ObjectID() ObjectID { return s.ID }

func (s *Server) Owner() Ref { return s.Tenant }

// Dependencies returns the tenant, the image if any, then attached volumes
func (s *Server) Dependencies() []Ref {
	deps := make([]Ref, 0, 2+len(s.AttachedVolumes))
	deps = append(deps, s.Tenant)
	if s.Image != nil {
		deps = append(deps, *s.Image)
	}
	return append(deps, s.AttachedVolumes...)
}
