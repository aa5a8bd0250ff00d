package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnotes-md/fieldnotes/internal/database"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

func TestTagInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	await(t).ok(fx.tags.Insert(mustTag(t, "raptor"), mustTag(t, "bird")))
	await(t).ok(fx.tags.Insert(mustTag(t, "bird")))

	tags, err := fx.tags.All().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Tag{mustTag(t, "bird"), mustTag(t, "raptor")}, tags)
}

func TestTagInsertRejectsZeroTag(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.tags.Insert(model.Tag{})
	assert.ErrorIs(t, err, model.ErrValidation)

	f, err := fx.tags.Insert()
	require.NoError(t, err)
	assert.NoError(t, f.Wait(context.Background()))
}

func TestSubTagNeedsKnownParent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	fox, err := model.NewSubTag("mammal", "fox")
	require.NoError(t, err)
	err = await(t).result(fx.tags.Insert(fox))
	assert.ErrorIs(t, err, database.ErrUnknownReference)

	await(t).ok(fx.tags.Insert(mustTag(t, "mammal"), fox))
	stored, err := fx.tags.Find(ctx, "fox")
	require.NoError(t, err)
	parent, ok := stored.Parent()
	assert.True(t, ok)
	assert.Equal(t, "mammal", parent)
}

func TestAncestorsNearestFirst(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	animal := mustTag(t, "animal")
	bird, err := animal.SubTag("bird")
	require.NoError(t, err)
	raptor, err := bird.SubTag("raptor")
	require.NoError(t, err)
	await(t).ok(fx.tags.Insert(raptor, bird, animal))

	ancestors, err := fx.tags.Ancestors(ctx, raptor)
	require.NoError(t, err)
	assert.Equal(t, []model.Tag{bird, animal}, ancestors)

	ancestors, err = fx.tags.Ancestors(ctx, animal)
	require.NoError(t, err)
	assert.Empty(t, ancestors)

	_, err = fx.tags.Ancestors(ctx, mustTag(t, "unknown"))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAllTagsIsLive(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Same(t, fx.tags.All(), fx.tags.All())

	updates := fx.tags.All().Watch(ctx)
	nextUpdate(t, updates, func(tags []model.Tag) bool { return len(tags) == 0 })

	await(t).ok(fx.tags.Insert(mustTag(t, "night")))
	tags := nextUpdate(t, updates, func(tags []model.Tag) bool { return len(tags) == 1 })
	assert.Equal(t, "night", tags[0].Content())
}
