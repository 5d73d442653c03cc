package nix_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fort-nix/nbtest/internal/nix"
	"github.com/fort-nix/nbtest/internal/testutil"
)

func TestBuildWithOutLink(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.Enqueue("/nix/store/abc123-vm-test-default\n", nil)

	b := nix.NewBuilder(runner)
	path, err := b.Build(context.Background(), `(import ./tests.nix { scenario = "default"; }).vm`, "result-default")
	require.NoError(t, err)
	assert.Equal(t, "/nix/store/abc123-vm-test-default", path)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "nix-build", calls[0].Path)
	assert.Equal(t, []string{
		"--out-link", "result-default",
		"-E", `(import ./tests.nix { scenario = "default"; }).vm`,
	}, calls[0].Args)
}

func TestBuildWithoutOutLink(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.Enqueue("/nix/store/abc123-vm-test-netns\n", nil)

	b := nix.NewBuilder(runner)
	_, err := b.Build(context.Background(), "expr", "")
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"--no-out-link", "-E", "expr"}, calls[0].Args)
}

func TestBuildUsesLastOutputLine(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.Enqueue("/nix/store/dep1-foo\n/nix/store/final-result\n", nil)

	b := nix.NewBuilder(runner)
	path, err := b.Build(context.Background(), "expr", "")
	require.NoError(t, err)
	assert.Equal(t, "/nix/store/final-result", path)
}

func TestBuildFailurePropagates(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.Enqueue("", errors.New("nix-build: exit status 1"))

	b := nix.NewBuilder(runner)
	_, err := b.Build(context.Background(), "expr", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
}

func TestBuildEmptyOutputIsAnError(t *testing.T) {
	runner := testutil.NewFakeRunner()

	b := nix.NewBuilder(runner)
	_, err := b.Build(context.Background(), "expr", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no store path")
}

func TestInstantiate(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.Enqueue("/nix/store/xyz-vm-test-default.drv\n", nil)

	b := nix.NewBuilder(runner)
	path, err := b.Instantiate(context.Background(), "expr")
	require.NoError(t, err)
	assert.Equal(t, "/nix/store/xyz-vm-test-default.drv", path)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "nix-instantiate", calls[0].Path)
	assert.Equal(t, []string{"-E", "expr"}, calls[0].Args)
}
