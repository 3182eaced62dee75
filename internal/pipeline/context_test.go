package pipeline

import (
	"reflect"
	"testing"

	"github.com/flowbench/flowbench/internal/errors"
)

func TestContextAppendOnly(t *testing.T) {
	c := NewContext(map[string]any{"seed": 1})

	if err := c.Set("answer", 42); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set("answer", 43); err == nil {
		t.Fatal("Set() on a bound key expected error")
	} else if code := errors.CodeOf(err); code != errors.ErrCodePipelineKeyOverwrite {
		t.Errorf("error code = %s, want %s", code, errors.ErrCodePipelineKeyOverwrite)
	}

	// The original binding survives the rejected overwrite.
	if v, _ := c.Get("answer"); v != 42 {
		t.Errorf("Get(answer) = %v, want 42", v)
	}
	if err := c.Set("seed", 2); err == nil {
		t.Error("Set() on a seeded key expected error")
	}
}

func TestContextKeysOrdered(t *testing.T) {
	c := NewContext(map[string]any{"b": 1, "a": 2})
	c.Set("z", 3)
	c.Set("m", 4)

	want := []string{"a", "b", "z", "m"}
	if got := c.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestContextResolve(t *testing.T) {
	c := NewContext(map[string]any{"raw_text": "hello", "limit": 10})

	params, err := c.Resolve(map[string]string{"raw_text": "text", "limit": "max"}, "step-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := map[string]any{"text": "hello", "max": 10}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("Resolve() = %v, want %v", params, want)
	}
}

func TestContextResolveMissingKey(t *testing.T) {
	c := NewContext(nil)

	_, err := c.Resolve(map[string]string{"absent": "param"}, "step-1")
	if err == nil {
		t.Fatal("Resolve() expected error for missing key")
	}
	if code := errors.CodeOf(err); code != errors.ErrCodePipelineMissingKey {
		t.Errorf("error code = %s, want %s", code, errors.ErrCodePipelineMissingKey)
	}
}

func TestContextSnapshotIsCopy(t *testing.T) {
	c := NewContext(map[string]any{"k": "v"})

	snap := c.Snapshot()
	snap["k"] = "mutated"
	snap["new"] = true

	if v, _ := c.Get("k"); v != "v" {
		t.Errorf("Get(k) = %v, snapshot mutation leaked into context", v)
	}
	if _, ok := c.Get("new"); ok {
		t.Error("snapshot addition leaked into context")
	}
}
