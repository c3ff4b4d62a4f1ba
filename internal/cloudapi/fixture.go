package cloudapi

import (
	"context"
	"fmt"
	"os"
	"sync"

	"capscan/internal/domain"

	"gopkg.in/yaml.v3"
)

// InventoryYAML represents the inventory file structure.
// Sub-records are keyed by the primary key of their parent.
type InventoryYAML struct {
	Tenants        []Raw            `yaml:"tenants"`
	Images         []Raw            `yaml:"images"`
	ImageMembers   map[string][]Raw `yaml:"image_members,omitempty"`
	Volumes        []Raw            `yaml:"volumes"`
	Servers        []Raw            `yaml:"servers"`
	EphemeralDisks map[string][]Raw `yaml:"ephemeral_disks,omitempty"`
}

// Fixture is a Client serving a fixed inventory.
// FailList and FailGet inject errors per resource type.
type Fixture struct {
	mu       sync.Mutex
	topLevel map[domain.ResourceType][]Raw
	children map[domain.ResourceType]map[string][]Raw

	FailList map[domain.ResourceType]error
	FailGet  map[domain.ResourceType]error

	calls map[string]int
}

// NewFixture creates an empty fixture
func NewFixture() *Fixture {
	return &Fixture{
		topLevel: make(map[domain.ResourceType][]Raw),
		children: map[domain.ResourceType]map[string][]Raw{
			domain.ResourceImageMember:   {},
			domain.ResourceEphemeralDisk: {},
		},
		FailList: make(map[domain.ResourceType]error),
		FailGet:  make(map[domain.ResourceType]error),
		calls:    make(map[string]int),
	}
}

// LoadYAML reads an inventory file
func LoadYAML(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML parses inventory YAML
func ParseYAML(data []byte) (*Fixture, error) {
	var inv InventoryYAML
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	f := NewFixture()
	f.Add(domain.ResourceTenant, inv.Tenants...)
	f.Add(domain.ResourceImage, inv.Images...)
	f.Add(domain.ResourceVolume, inv.Volumes...)
	f.Add(domain.ResourceServer, inv.Servers...)
	for parent, members := range inv.ImageMembers {
		f.AddChildren(domain.ResourceImageMember, parent, members...)
	}
	for parent, disks := range inv.EphemeralDisks {
		f.AddChildren(domain.ResourceEphemeralDisk, parent, disks...)
	}
	return f, nil
}

// ExportYAML serialises the fixture inventory
func (f *Fixture) ExportYAML() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	inv := InventoryYAML{
		Tenants:        f.topLevel[domain.ResourceTenant],
		Images:         f.topLevel[domain.ResourceImage],
		ImageMembers:   f.children[domain.ResourceImageMember],
		Volumes:        f.topLevel[domain.ResourceVolume],
		Servers:        f.topLevel[domain.ResourceServer],
		EphemeralDisks: f.children[domain.ResourceEphemeralDisk],
	}
	return yaml.Marshal(&inv)
}

// Add appends top-level records of a type
func (f *Fixture) Add(rt domain.ResourceType, raws ...Raw) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topLevel[rt] = append(f.topLevel[rt], raws...)
	return f
}

// AddChildren appends sub-records of a type owned by parent
func (f *Fixture) AddChildren(rt domain.ResourceType, parent string, raws ...Raw) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.children[rt] == nil {
		f.children[rt] = make(map[string][]Raw)
	}
	f.children[rt][parent] = append(f.children[rt][parent], raws...)
	return f
}

// List implements Client
func (f *Fixture) List(ctx context.Context, rt domain.ResourceType, filter Filter) ([]Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list:"+string(rt)]++

	if err := f.FailList[rt]; err != nil {
		return nil, err
	}

	source := f.topLevel[rt]
	if byParent, ok := f.children[rt]; ok {
		if filter.Parent == "" {
			return nil, fmt.Errorf("list %s: parent required", rt)
		}
		source = byParent[filter.Parent]
	}

	out := make([]Raw, 0, len(source))
	for _, raw := range source {
		if filter.Matches(raw) {
			out = append(out, cloneRaw(raw))
		}
	}
	return out, nil
}

// Get implements Client. Records are matched on their "id" key.
func (f *Fixture) Get(ctx context.Context, rt domain.ResourceType, id string) (Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get:"+string(rt)]++

	if err := f.FailGet[rt]; err != nil {
		return nil, err
	}

	for _, raw := range f.topLevel[rt] {
		if fmt.Sprint(raw["id"]) == id {
			return cloneRaw(raw), nil
		}
	}
	return nil, NotFound(rt, id)
}

// Calls returns how many times an operation ("list" or "get") was invoked
// for a type
func (f *Fixture) Calls(op string, rt domain.ResourceType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+string(rt)]
}
