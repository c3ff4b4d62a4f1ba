package domain

import "capscan/internal/schema"

// ImageMemberSchema is the field table for image membership entries
var ImageMemberSchema = schema.New(string(ResourceImageMember),
	schema.Field{Name: "member_id", Kind: schema.KindString, Required: true},
	schema.Field{Name: "can_share", Kind: schema.KindBoolean, Required: true},
)

// ImageSchema is the field table for images
var ImageSchema = schema.New(string(ResourceImage),
	schema.Field{Name: "object_id", Kind: schema.KindPrimaryKey, Required: true, LoadFrom: "id"},
	schema.Field{Name: "name", Kind: schema.KindString, Required: true},
	schema.Field{Name: "tenant", Kind: schema.KindDependency, Required: true, LoadFrom: "owner", Target: string(ResourceTenant)},
	schema.Field{Name: "checksum", Kind: schema.KindString, Required: true, AllowNull: true},
	schema.Field{Name: "size", Kind: schema.KindInteger, Required: true},
	schema.Field{Name: "virtual_size", Kind: schema.KindInteger, AllowNull: true},
	schema.Field{Name: "is_public", Kind: schema.KindBoolean, Required: true},
	schema.Field{Name: "protected", Kind: schema.KindBoolean, Required: true},
	schema.Field{Name: "container_format", Kind: schema.KindString, Required: true},
	schema.Field{Name: "disk_format", Kind: schema.KindString, Required: true},
	schema.Field{Name: "min_disk", Kind: schema.KindInteger, Required: true},
	schema.Field{Name: "min_ram", Kind: schema.KindInteger, Required: true},
	schema.Field{Name: "properties", Kind: schema.KindMap},
	schema.Field{Name: "members", Kind: schema.KindNested, Nested: ImageMemberSchema, Default: schema.EmptyList},
)

// ImageMember grants a tenant access to a private image
type ImageMember struct {
	MemberID string `json:"member_id"`
	CanShare bool   `json:"can_share"`
}

// Image is a bootable disk image. Size is in bytes.
type Image struct {
	ID              ObjectID       `json:"object_id"`
	Name            string         `json:"name"`
	Tenant          Ref            `json:"tenant"`
	Checksum        *string        `json:"checksum"`
	Size            int64          `json:"size"`
	VirtualSize     *int64         `json:"virtual_size"`
	IsPublic        bool           `json:"is_public"`
	Protected       bool           `json:"protected"`
	ContainerFormat string         `json:"container_format"`
	DiskFormat      string         `json:"disk_format"`
	MinDisk         int64          `json:"min_disk"`
	MinRAM          int64          `json:"min_ram"`
	Properties      map[string]any `json:"properties,omitempty"`
	Members         []ImageMember  `json:"members"`
}

// LoadImageMember validates a raw membership entry
func LoadImageMember(raw map[string]any) (ImageMember, error) {
	res, err := ImageMemberSchema.Validate(raw)
	if err != nil {
		return ImageMember{}, err
	}
	return imageMemberFrom(res), nil
}

func imageMemberFrom(res *schema.Result) ImageMember {
	return ImageMember{
		MemberID: res.String("member_id"),
		CanShare: res.Bool("can_share"),
	}
}

// LoadImage validates a raw image payload, including any inline members
func LoadImage(cloud string, raw map[string]any) (*Image, error) {
	res, err := ImageSchema.Validate(raw)
	if err != nil {
		return nil, err
	}

	owner, _ := res.Ref("tenant")
	img := &Image{
		ID:              NewObjectID(cloud, ResourceImage, res.PrimaryKey),
		Name:            res.String("name"),
		Tenant:          NewRef(cloud, ResourceTenant, owner),
		Checksum:        res.StringPtr("checksum"),
		Size:            res.Int("size"),
		VirtualSize:     res.IntPtr("virtual_size"),
		IsPublic:        res.Bool("is_public"),
		Protected:       res.Bool("protected"),
		ContainerFormat: res.String("container_format"),
		DiskFormat:      res.String("disk_format"),
		MinDisk:         res.Int("min_disk"),
		MinRAM:          res.Int("min_ram"),
		Properties:      res.Map("properties"),
		Members:         make([]ImageMember, 0),
	}
	for _, m := range res.Nested("members") {
		img.Members = append(img.Members, imageMemberFrom(m))
	}
	return img, nil
}

func (i *Image) ObjectID() ObjectID { return i.ID }

func (i *Image) Owner() Ref { return i.Tenant }

func (i *Image) Dependencies() []Ref { return []Ref{i.Tenant} }
