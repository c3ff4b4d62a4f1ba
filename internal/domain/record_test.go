package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"capscan/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawImage() map[string]any {
	return map[string]any{
		"id":               "img-1",
		"name":             "cirros",
		"owner":            "t1",
		"checksum":         "abc",
		"size":             100,
		"is_public":        false,
		"protected":        false,
		"container_format": "bare",
		"disk_format":      "qcow2",
		"min_disk":         0,
		"min_ram":          0,
	}
}

func rawServer() map[string]any {
	return map[string]any{
		"id":         "srv-1",
		"name":       "web",
		"tenant_id":  "t1",
		"status":     "ACTIVE",
		"image_id":   "img-1",
		"volume_ids": []any{"vol-1", "vol-2"},
		"ephemeral_disks": []any{
			map[string]any{"path": "/var/lib/nova/disk", "size": 10},
		},
	}
}

func TestLoadTenant(t *testing.T) {
	tenant, err := LoadTenant("src", map[string]any{"id": "t1", "name": "admin"})
	require.NoError(t, err)

	assert.Equal(t, NewObjectID("src", ResourceTenant, "t1"), tenant.ObjectID())
	assert.Equal(t, "admin", tenant.Name)
	assert.True(t, tenant.Enabled, "enabled defaults to true")
	assert.True(t, tenant.Owner().IsZero())
	assert.Empty(t, tenant.Dependencies())
}

func TestLoadImage(t *testing.T) {
	t.Run("valid image", func(t *testing.T) {
		img, err := LoadImage("src", rawImage())
		require.NoError(t, err)

		assert.Equal(t, "src/image/img-1", img.ObjectID().String())
		assert.Equal(t, NewRef("src", ResourceTenant, "t1"), img.Owner())
		assert.Equal(t, int64(100), img.Size)
		require.NotNil(t, img.Checksum)
		assert.Equal(t, "abc", *img.Checksum)
		assert.Nil(t, img.VirtualSize)
		assert.NotNil(t, img.Members)
		assert.Empty(t, img.Members)
		assert.Equal(t, []Ref{img.Tenant}, img.Dependencies())
	})

	t.Run("inline members", func(t *testing.T) {
		raw := rawImage()
		raw["members"] = []any{map[string]any{"member_id": "t2", "can_share": true}}

		img, err := LoadImage("src", raw)
		require.NoError(t, err)
		assert.Equal(t, []ImageMember{{MemberID: "t2", CanShare: true}}, img.Members)
	})

	t.Run("missing owner", func(t *testing.T) {
		raw := rawImage()
		delete(raw, "owner")

		_, err := LoadImage("src", raw)
		var verr *schema.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "tenant", verr.Field())
	})
}

func TestLoadImageMember(t *testing.T) {
	m, err := LoadImageMember(map[string]any{"member_id": "t2", "can_share": false})
	require.NoError(t, err)
	assert.Equal(t, ImageMember{MemberID: "t2"}, m)

	_, err = LoadImageMember(map[string]any{"member_id": "t2"})
	assert.ErrorIs(t, err, schema.ErrValidation)
}

func TestLoadVolumeConvertsGiB(t *testing.T) {
	vol, err := LoadVolume("src", map[string]any{
		"id":        "vol-1",
		"name":      nil,
		"tenant_id": "t1",
		"size":      2,
		"status":    "available",
	})
	require.NoError(t, err)

	assert.Equal(t, 2*GiB, vol.Size)
	assert.Equal(t, "", vol.Name)
	assert.False(t, vol.Bootable)
	assert.Equal(t, NewRef("src", ResourceTenant, "t1"), vol.Owner())
}

func TestLoadServer(t *testing.T) {
	t.Run("with image volumes and disks", func(t *testing.T) {
		srv, err := LoadServer("src", rawServer())
		require.NoError(t, err)

		require.NotNil(t, srv.Image)
		assert.Equal(t, NewRef("src", ResourceImage, "img-1"), *srv.Image)
		assert.Equal(t, []Ref{
			NewRef("src", ResourceVolume, "vol-1"),
			NewRef("src", ResourceVolume, "vol-2"),
		}, srv.AttachedVolumes)
		assert.Equal(t, []EphemeralDisk{{Path: "/var/lib/nova/disk", Size: 10}}, srv.EphemeralDisks)

		deps := srv.Dependencies()
		require.Len(t, deps, 4)
		assert.Equal(t, srv.Tenant, deps[0])
		assert.Equal(t, *srv.Image, deps[1])
	})

	t.Run("booted from volume", func(t *testing.T) {
		raw := rawServer()
		raw["image_id"] = nil
		delete(raw, "volume_ids")

		srv, err := LoadServer("src", raw)
		require.NoError(t, err)
		assert.Nil(t, srv.Image)
		assert.Empty(t, srv.AttachedVolumes)
		assert.Len(t, srv.Dependencies(), 1)
	})

	t.Run("bad disk fails the whole server", func(t *testing.T) {
		raw := rawServer()
		raw["ephemeral_disks"] = []any{
			map[string]any{"path": "/a", "size": 1},
			map[string]any{"path": "/b", "size": "big"},
		}

		srv, err := LoadServer("src", raw)
		assert.Nil(t, srv)
		var verr *schema.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "ephemeral_disks[1].size", verr.Field())
	})
}

func TestDecodeRecordRoundTrip(t *testing.T) {
	srv, err := LoadServer("src", rawServer())
	require.NoError(t, err)

	data, err := json.Marshal(srv)
	require.NoError(t, err)

	rec, err := DecodeRecord(ResourceServer, data)
	require.NoError(t, err)
	assert.Equal(t, srv, rec)

	_, err = DecodeRecord(ResourceImage, data)
	assert.Error(t, err, "type mismatch must be rejected")

	_, err = DecodeRecord(ResourceEphemeralDisk, data)
	assert.Error(t, err, "nested types are never stored")
}
