package cron

import (
	"context"
	"testing"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry, err := NewRegistry(namedJob("prune-common-items"), namedJob("vacuum"))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0].Name() != "prune-common-items" || jobs[1].Name() != "vacuum" {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("registry exposed its backing slice")
	}
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	if _, err := NewRegistry(namedJob("prune"), namedJob("prune")); err == nil {
		t.Fatalf("expected duplicate name to fail")
	}
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := registry.Register(namedJob("  ")); err == nil {
		t.Fatalf("expected blank name to fail")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil job to fail")
	}
}
