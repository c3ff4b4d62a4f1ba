package codec

import (
	"fmt"
	"io"

	"capscan/internal/service"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Export writes the report as YAML. Object ids are flattened to their
// cloud/type/id form.
func (c *YAMLCodec) Export(report *service.Report, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(toYAML(report)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

type yamlReport struct {
	Filter         service.Filter        `yaml:"filter"`
	GeneratedAt    string                `yaml:"generated_at"`
	Limit          int                   `yaml:"limit,omitempty"`
	Estimate       *service.CopyEstimate `yaml:"estimate,omitempty"`
	LargestServers []yamlServer          `yaml:"largest_servers,omitempty"`
	Unused         *yamlUnused           `yaml:"unused,omitempty"`
}

type yamlServer struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Size          int64  `yaml:"size"`
	ImageSize     int64  `yaml:"image_size"`
	EphemeralSize int64  `yaml:"ephemeral_size"`
	VolumeSize    int64  `yaml:"volume_size"`
}

type yamlResource struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Size int64  `yaml:"size"`
}

type yamlUnused struct {
	Volumes      []yamlResource `yaml:"volumes"`
	VolumesCount int            `yaml:"volumes_count"`
	VolumesTotal int64          `yaml:"volumes_total"`
	Images       []yamlResource `yaml:"images"`
	ImagesCount  int            `yaml:"images_count"`
	ImagesTotal  int64          `yaml:"images_total"`
}

func toYAML(report *service.Report) yamlReport {
	yr := yamlReport{
		Filter:      report.Filter,
		GeneratedAt: report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		Limit:       report.Limit,
		Estimate:    report.Estimate,
	}

	for _, s := range report.LargestServers {
		yr.LargestServers = append(yr.LargestServers, yamlServer{
			ID:            s.ID.String(),
			Name:          s.Name,
			Size:          s.Size,
			ImageSize:     s.ImageSize,
			EphemeralSize: s.EphemeralSize,
			VolumeSize:    s.VolumeSize,
		})
	}

	if u := report.Unused; u != nil {
		yr.Unused = &yamlUnused{
			Volumes:      toYAMLResources(u.Volumes),
			VolumesCount: u.VolumesCount,
			VolumesTotal: u.VolumesTotal,
			Images:       toYAMLResources(u.Images),
			ImagesCount:  u.ImagesCount,
			ImagesTotal:  u.ImagesTotal,
		}
	}

	return yr
}

func toYAMLResources(in []service.ResourceUsage) []yamlResource {
	out := make([]yamlResource, 0, len(in))
	for _, r := range in {
		out = append(out, yamlResource{ID: r.ID.String(), Name: r.Name, Size: r.Size})
	}
	return out
}
