package codec

import (
	"fmt"
	"io"
	"sort"

	"capscan/internal/service"
)

// Exporter writes a report in one serialisation format
type Exporter interface {
	Export(report *service.Report, w io.Writer) error
	Format() string
}

var exporters = map[string]func() Exporter{
	"json": func() Exporter { return NewJSONCodec() },
	"yaml": func() Exporter { return NewYAMLCodec() },
}

// Formats returns the names ForFormat accepts
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForFormat returns the exporter for a format name
func ForFormat(name string) (Exporter, error) {
	if name == "yml" {
		name = "yaml"
	}
	newExporter, ok := exporters[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (want one of %v)", name, Formats())
	}
	return newExporter(), nil
}
