// Package scenario defines the test scenarios nbtest can build and the
// registry that resolves scenario names.
//
// The five built-in scenarios mirror the service-module combinations the
// test suite ships with. Additional scenarios can be declared in CUE
// files and merged into the registry at startup.
package scenario

import (
	"fmt"
	"sort"
	"strings"
)

// Spec describes a single test scenario.
type Spec struct {
	// Name is the Nix attribute the scenario is evaluated under.
	Name string

	// Description explains which service modules the scenario enables.
	Description string

	// Args holds extra arguments passed to the tests entry point,
	// rendered as Nix attribute bindings. Values are raw Nix
	// expressions ("true", "3", or quoted strings).
	Args map[string]string

	// NumCPUs and MemoryMiB override the resolved resource limits
	// when non-zero.
	NumCPUs   int
	MemoryMiB int

	// ExtraQEMUOpts is appended to the VM's QEMU option string.
	ExtraQEMUOpts string
}

// DefaultName is the scenario used when a command other than build runs
// with no scenario set.
const DefaultName = "default"

// builtins lists the scenarios shipped with the test suite.
var builtins = []Spec{
	{Name: "default", Description: "all service modules with default settings"},
	{Name: "netns", Description: "default services isolated in network namespaces"},
	{Name: "full", Description: "every available service module enabled"},
	{Name: "regtest", Description: "default services on a regtest chain"},
	{Name: "netnsRegtest", Description: "network namespaces combined with regtest"},
}

// BasicSet is the scenario sequence built by the basic command and by
// build when no scenario is set. Order is fixed.
func BasicSet() []string {
	return []string{"default", "netns", "netnsRegtest"}
}

// AllSet is the scenario sequence built by the all command. Order is
// fixed.
func AllSet() []string {
	return []string{"default", "netns", "full", "regtest", "netnsRegtest"}
}

// Registry resolves scenario names to specs.
type Registry struct {
	specs map[string]Spec
	names []string // insertion order: built-ins first, then extras sorted
}

// NewRegistry returns a registry holding the built-in scenarios.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec, len(builtins))}
	for _, s := range builtins {
		r.specs[s.Name] = s
		r.names = append(r.names, s.Name)
	}
	return r
}

// Add merges extra scenario specs into the registry. A spec whose name
// matches a built-in replaces it, which lets definition files override
// resource limits or arguments of shipped scenarios.
func (r *Registry) Add(specs []Spec) {
	extras := make([]string, 0, len(specs))
	for _, s := range specs {
		if _, known := r.specs[s.Name]; !known {
			extras = append(extras, s.Name)
		}
		r.specs[s.Name] = s
	}
	sort.Strings(extras)
	r.names = append(r.names, extras...)
}

// Lookup returns the spec for name. Unknown names report the full set
// of known scenarios so a typo is immediately diagnosable.
func (r *Registry) Lookup(name string) (Spec, error) {
	s, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("unknown scenario %q (known: %s)", name, strings.Join(r.names, ", "))
	}
	return s, nil
}

// Names returns all known scenario names, built-ins first.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
