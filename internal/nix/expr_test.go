package nix

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/fort-nix/nbtest/internal/scenario"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestTestExprDefault(t *testing.T) {
	expr := TestExpr(ExprParams{
		TestsFile: "./test/tests.nix",
		Scenario:  scenario.Spec{Name: "default"},
	})

	newGoldie(t).Assert(t, "test_expr_default", []byte(expr))
}

func TestDriverExprDefault(t *testing.T) {
	expr := DriverExpr(ExprParams{
		TestsFile: "./test/tests.nix",
		Scenario:  scenario.Spec{Name: "default"},
	})

	newGoldie(t).Assert(t, "driver_expr_default", []byte(expr))
}

func TestTestExprArgsAndQEMUOpts(t *testing.T) {
	expr := TestExpr(ExprParams{
		TestsFile: "./test/tests.nix",
		Scenario: scenario.Spec{
			Name: "clightningOnly",
			Args: map[string]string{
				"peerCount":        "3",
				"enableClightning": "true",
			},
			ExtraQEMUOpts: "-device virtio-rng-pci",
		},
		ExtraQEMUOpts: "-cpu host,-vmx",
	})

	newGoldie(t).Assert(t, "test_expr_args_ci", []byte(expr))
}

func TestTestExprWithResources(t *testing.T) {
	expr := TestExpr(ExprParams{
		TestsFile: "./test/tests.nix",
		Scenario:  scenario.Spec{Name: "netns"},
		NumCPUs:   4,
		MemoryMiB: 2048,
	})

	newGoldie(t).Assert(t, "test_expr_resources", []byte(expr))
}

func TestExprArgsAreSorted(t *testing.T) {
	p := ExprParams{
		TestsFile: "./tests.nix",
		Scenario: scenario.Spec{
			Name: "x",
			Args: map[string]string{"b": "2", "a": "1", "c": "3"},
		},
	}

	// Map iteration order must not leak into the rendering.
	first := TestExpr(p)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, TestExpr(p))
	}
}
