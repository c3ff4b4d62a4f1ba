package domain

import (
	"encoding/json"
	"fmt"
)

// NewRecord returns an empty record of the given stored type
func NewRecord(t ResourceType) (Record, error) {
	switch t {
	case ResourceTenant:
		return &Tenant{}, nil
	case ResourceImage:
		return &Image{}, nil
	case ResourceVolume:
		return &Volume{}, nil
	case ResourceServer:
		return &Server{}, nil
	default:
		return nil, fmt.Errorf("no stored record type %q", t)
	}
}

// DecodeRecord restores a record previously encoded with json.Marshal
func DecodeRecord(t ResourceType, data []byte) (Record, error) {
	rec, err := NewRecord(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	if rec.ObjectID().Type != t {
		return nil, fmt.Errorf("decode %s: payload holds %s", t, rec.ObjectID())
	}
	return rec, nil
}
