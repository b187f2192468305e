package tools

import (
	"context"
	"errors"
	"testing"
)

type failingProvider struct{}

func (failingProvider) ID() string           { return "failing" }
func (failingProvider) Name() string         { return "Failing" }
func (failingProvider) Instructions() string { return "never seen" }
func (failingProvider) Connected() bool      { return true }
func (failingProvider) Tools(ctx context.Context) ([]Tool, error) {
	return nil, errors.New("listing broke")
}

func staticWith(id, instructions string, names ...string) *StaticProvider {
	toolList := make([]Tool, len(names))
	for i, n := range names {
		toolList[i] = Tool{Name: n}
	}
	return &StaticProvider{
		ProviderID:         id,
		ProviderName:       id,
		SystemInstructions: instructions,
		ToolList:           toolList,
	}
}

func toolNames(r Resolution) []string {
	names := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		names[i] = t.Name
	}
	return names
}

func TestResolvePreservesProviderOrder(t *testing.T) {
	res := Resolve(context.Background(), Policy{}, "", []Provider{
		staticWith("a", "", "one", "two"),
		staticWith("b", "", "three"),
	})

	want := []string{"one", "two", "three"}
	got := toolNames(res)
	if len(got) != len(want) {
		t.Fatalf("tools = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tools = %v, want %v", got, want)
		}
	}
}

func TestResolvePolicy(t *testing.T) {
	providers := []Provider{
		staticWith("a", "", "one"),
		staticWith("b", "", "two"),
		staticWith("c", "", "three"),
	}

	tests := []struct {
		name   string
		policy Policy
		want   []string
	}{
		{"zero policy allows all", Policy{}, []string{"one", "two", "three"}},
		{"deny list removes", Policy{Disabled: []string{"b"}}, []string{"one", "three"}},
		{"allow list restricts", Policy{Enabled: []string{"b"}}, []string{"two"}},
		{
			"allow list beats deny list",
			Policy{Enabled: []string{"a", "b"}, Disabled: []string{"b"}},
			[]string{"one", "two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toolNames(Resolve(context.Background(), tt.policy, "", providers))
			if len(got) != len(tt.want) {
				t.Fatalf("tools = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("tools = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResolveSkipsDisconnected(t *testing.T) {
	offline := staticWith("offline", "offline instructions", "hidden")
	offline.Disconnected = true

	res := Resolve(context.Background(), Policy{}, "", []Provider{
		offline,
		staticWith("online", "", "visible"),
	})

	if got := toolNames(res); len(got) != 1 || got[0] != "visible" {
		t.Fatalf("tools = %v, want [visible]", got)
	}
	if res.Instructions != "" {
		t.Fatalf("instructions = %q, disconnected provider leaked", res.Instructions)
	}
}

func TestResolveFailingProviderContributesNothing(t *testing.T) {
	res := Resolve(context.Background(), Policy{}, "base", []Provider{
		failingProvider{},
		staticWith("ok", "ok instructions", "works"),
	})

	if got := toolNames(res); len(got) != 1 || got[0] != "works" {
		t.Fatalf("tools = %v, want [works]", got)
	}
	if res.Instructions != "base\n\nok instructions" {
		t.Fatalf("instructions = %q", res.Instructions)
	}
}

func TestResolveJoinsInstructions(t *testing.T) {
	res := Resolve(context.Background(), Policy{}, "profile", []Provider{
		staticWith("a", "use tool one"),
		staticWith("b", ""),
		staticWith("c", "use tool three"),
	})

	want := "profile\n\nuse tool one\n\nuse tool three"
	if res.Instructions != want {
		t.Fatalf("instructions = %q, want %q", res.Instructions, want)
	}
}

func TestLookupLastRegisteredWins(t *testing.T) {
	first := Tool{Name: "dup", Description: "first"}
	second := Tool{Name: "dup", Description: "second"}
	res := Resolution{Tools: []Tool{first, second}}

	got, ok := res.Lookup("dup")
	if !ok {
		t.Fatal("dup not found")
	}
	if got.Description != "second" {
		t.Fatalf("Lookup returned %q, want the later registration", got.Description)
	}

	if _, ok := res.Lookup("missing"); ok {
		t.Fatal("found a tool that does not exist")
	}
}
