package domain

import "fmt"

// ResourceType identifies a kind of discovered cloud resource
type ResourceType string

const (
	ResourceTenant        ResourceType = "tenant"
	ResourceImage         ResourceType = "image"
	ResourceImageMember   ResourceType = "image_member"
	ResourceVolume        ResourceType = "volume"
	ResourceServer        ResourceType = "server"
	ResourceEphemeralDisk ResourceType = "ephemeral_disk"
)

// ObjectID is the identity of a discovered resource within a run.
// Two records with equal ObjectIDs are the same resource.
type ObjectID struct {
	Cloud string       `json:"cloud" yaml:"cloud"`
	Type  ResourceType `json:"type" yaml:"type"`
	ID    string       `json:"id" yaml:"id"`
}

// NewObjectID creates an ObjectID from its parts
func NewObjectID(cloud string, resourceType ResourceType, id string) ObjectID {
	return ObjectID{Cloud: cloud, Type: resourceType, ID: id}
}

// IsZero reports whether the ObjectID is unset
func (o ObjectID) IsZero() bool {
	return o == ObjectID{}
}

// String formats the ObjectID as cloud/type/id
func (o ObjectID) String() string {
	return fmt.Sprintf("%s/%s/%s", o.Cloud, o.Type, o.ID)
}

// Record is a validated, typed resource
type Record interface {
	// ObjectID returns the record's identity
	ObjectID() ObjectID
	// Owner returns the reference to the owning tenant, or a zero Ref
	Owner() Ref
	// Dependencies returns every reference the record holds
	Dependencies() []Ref
}
