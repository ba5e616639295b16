package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhub/backend/internal/model"
)

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, alice := env.register(t, "alice")

	project, err := env.projects.Create(ctx, alice.ID, model.ProjectRequest{Name: " Launch ", Description: "q3"})
	require.NoError(t, err)
	assert.Equal(t, "Launch", project.Name)
	assert.Equal(t, model.ProjectStatusActive, project.Status)

	updated, err := env.projects.Update(ctx, alice.ID, project.ID, model.ProjectRequest{Name: "Launch", Status: model.ProjectStatusArchived})
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusArchived, updated.Status)
	assert.Empty(t, updated.Description)

	list, err := env.projects.List(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, env.projects.Delete(ctx, alice.ID, project.ID))
	_, err = env.projects.Get(ctx, alice.ID, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, alice := env.register(t, "alice")

	_, err := env.projects.Create(ctx, alice.ID, model.ProjectRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.projects.Create(ctx, alice.ID, model.ProjectRequest{Name: "x", Status: "paused"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProjectCrossUserIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, alice := env.register(t, "alice")
	_, bob := env.register(t, "bob")

	project, err := env.projects.Create(ctx, alice.ID, model.ProjectRequest{Name: "secret"})
	require.NoError(t, err)

	_, err = env.projects.Get(ctx, bob.ID, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.projects.Update(ctx, bob.ID, project.ID, model.ProjectRequest{Name: "taken"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.projects.Delete(ctx, bob.ID, project.ID), ErrNotFound)
	_, err = env.projects.Get(ctx, alice.ID, -1)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := env.projects.Get(ctx, alice.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Name)
}

func TestDeleteProjectKeepsTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, alice := env.register(t, "alice")

	project, err := env.projects.Create(ctx, alice.ID, model.ProjectRequest{Name: "p"})
	require.NoError(t, err)
	task, err := env.tasks.Create(ctx, alice.ID, model.TaskRequest{Title: "t", ProjectID: &project.ID})
	require.NoError(t, err)

	require.NoError(t, env.projects.Delete(ctx, alice.ID, project.ID))

	got, err := env.tasks.Get(ctx, alice.ID, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProjectID)
	assert.Nil(t, got.ProjectName)
}
