package core

import (
	"context"
	"testing"
)

func successAgent(payload string) Agent {
	return AgentFunc(func(ctx context.Context, input string) (Outcome, error) {
		return Outcome{Status: StatusSuccess, Payload: payload}, nil
	})
}

func TestNewRegistryRejectsReservedID(t *testing.T) {
	_, err := NewRegistry(map[AgentID]Agent{Terminal: successAgent("x")})
	if err == nil {
		t.Fatal("expected error registering terminal sentinel")
	}
}

func TestNewRegistryRejectsNilAgent(t *testing.T) {
	_, err := NewRegistry(map[AgentID]Agent{"a": nil})
	if err == nil {
		t.Fatal("expected error registering nil agent")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(map[AgentID]Agent{
		"b": successAgent("b"),
		"a": successAgent("a"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := reg.Lookup("a"); !ok {
		t.Fatal("expected agent a to be registered")
	}
	if reg.Has("c") {
		t.Fatal("agent c should not be registered")
	}

	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
