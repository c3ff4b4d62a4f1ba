package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver map[ObjectID]Record

func (m mapResolver) Resolve(_ context.Context, id ObjectID) (Record, error) {
	rec, ok := m[id]
	if !ok {
		return nil, &DanglingReferenceError{Ref: id, Err: &NotFoundError{ID: id}}
	}
	return rec, nil
}

func TestRefResolve(t *testing.T) {
	ctx := context.Background()
	tenant := &Tenant{ID: NewObjectID("src", ResourceTenant, "t1"), Name: "admin"}
	resolver := mapResolver{tenant.ID: tenant}

	t.Run("hit returns record with declared id", func(t *testing.T) {
		ref := NewRef("src", ResourceTenant, "t1")
		rec, err := ref.Resolve(ctx, resolver)
		require.NoError(t, err)
		assert.Equal(t, ref.Target, rec.ObjectID())
	})

	t.Run("typed resolve", func(t *testing.T) {
		got, err := ResolveAs[*Tenant](ctx, NewRef("src", ResourceTenant, "t1"), resolver)
		require.NoError(t, err)
		assert.Same(t, tenant, got)
	})

	t.Run("typed resolve with wrong type", func(t *testing.T) {
		_, err := ResolveAs[*Image](ctx, NewRef("src", ResourceTenant, "t1"), resolver)
		assert.Error(t, err)
	})

	t.Run("miss is dangling", func(t *testing.T) {
		_, err := NewRef("src", ResourceTenant, "nope").Resolve(ctx, resolver)
		assert.ErrorIs(t, err, ErrDanglingReference)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("zero ref", func(t *testing.T) {
		_, err := Ref{}.Resolve(ctx, resolver)
		assert.Error(t, err)
	})

	t.Run("resolver returning another record", func(t *testing.T) {
		wrong := mapResolver{NewObjectID("src", ResourceTenant, "t2"): tenant}
		_, err := NewRef("src", ResourceTenant, "t2").Resolve(ctx, wrong)
		assert.Error(t, err)
	})
}

func TestErrorTaxonomy(t *testing.T) {
	id := NewObjectID("src", ResourceVolume, "v1")

	t.Run("not found", func(t *testing.T) {
		var err error = &NotFoundError{ID: id}
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrDanglingReference)
		assert.Equal(t, "src/volume/v1: not found", err.Error())
	})

	t.Run("upstream wraps plain errors", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Upstream("get volume", cause)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.ErrorIs(t, err, cause)

		var uerr *UpstreamError
		require.True(t, errors.As(err, &uerr))
		assert.Equal(t, "get volume", uerr.Op)
	})

	t.Run("upstream passes through not found", func(t *testing.T) {
		nf := &NotFoundError{ID: id}
		assert.Same(t, error(nf), Upstream("get volume", nf))
		assert.Nil(t, Upstream("get volume", nil))
	})
}

func TestObjectIDIsZero(t *testing.T) {
	assert.True(t, ObjectID{}.IsZero())
	assert.False(t, NewObjectID("src", ResourceImage, "i").IsZero())
}
