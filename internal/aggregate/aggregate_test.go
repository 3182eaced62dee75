package aggregate

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbench/flowbench/internal/errors"
	"github.com/flowbench/flowbench/internal/sandbox"
)

func TestConcatWithSeparator(t *testing.T) {
	a := New(nil)

	result, err := a.Aggregate(context.Background(), []any{"a", "b", "c"}, StrategyConcat, Params{Separator: "-"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "a-b-c", result.Value)
	assert.Equal(t, 3, result.ItemCount)
}

func TestConcatDefaultsToNewline(t *testing.T) {
	a := New(nil)

	result, err := a.Aggregate(context.Background(), []any{"x", "y"}, StrategyConcat, Params{})
	require.NoError(t, err)
	assert.Equal(t, "x\ny", result.Value)
}

func TestConcatProjection(t *testing.T) {
	a := New(nil)

	items := []any{
		"plain",
		map[string]any{"text": "from text"},
		map[string]any{"output": "from output"},
		map[string]any{"result": "from result"},
		map[string]any{"score": 7},
	}

	result, err := a.Aggregate(context.Background(), items, StrategyConcat, Params{Separator: "|"})
	require.NoError(t, err)
	assert.Equal(t, `plain|from text|from output|from result|{"score":7}`, result.Value)
}

func TestConcatIsDeterministic(t *testing.T) {
	a := New(nil)
	items := []any{"a", "b", "c"}

	first, err := a.Aggregate(context.Background(), items, StrategyConcat, Params{Separator: ","})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := a.Aggregate(context.Background(), items, StrategyConcat, Params{Separator: ","})
		require.NoError(t, err)
		assert.Equal(t, first.Value, again.Value)
	}
}

func TestStatsScores(t *testing.T) {
	a := New(nil)

	items := []any{
		map[string]any{"score": 85.0},
		map[string]any{"score": 90.0},
		map[string]any{"score": 78.0},
	}

	result, err := a.Aggregate(context.Background(), items, StrategyStats, Params{Fields: []string{"score"}})
	require.NoError(t, err)
	require.True(t, result.Success)

	fields := result.Value.(map[string]any)["fields"].(map[string]any)
	score := fields["score"].(map[string]any)

	assert.Equal(t, 3, score["count"])
	assert.Equal(t, 253.0, score["sum"])
	assert.InDelta(t, 84.33, score["mean"].(float64), 0.01)
	assert.Equal(t, 78.0, score["min"])
	assert.Equal(t, 90.0, score["max"])
	assert.Equal(t, 85.0, score["median"])
	assert.InDelta(t, 6.03, score["stdev"].(float64), 0.01)
}

func TestStatsMeanLaw(t *testing.T) {
	a := New(nil)

	items := []any{
		map[string]any{"x": 1.0, "y": 10},
		map[string]any{"x": 2.0},
		map[string]any{"x": 4.0, "y": 30},
	}

	result, err := a.Aggregate(context.Background(), items, StrategyStats, Params{Fields: []string{"x", "y"}})
	require.NoError(t, err)
	require.True(t, result.Success)

	fields := result.Value.(map[string]any)["fields"].(map[string]any)
	for _, f := range []string{"x", "y"} {
		entry := fields[f].(map[string]any)
		count := entry["count"].(int)
		require.Greater(t, count, 0)
		assert.InDelta(t, entry["sum"].(float64)/float64(count), entry["mean"].(float64), 1e-9, "field %s", f)
	}
}

func TestStatsSkipsBooleansAndMissing(t *testing.T) {
	a := New(nil)

	items := []any{
		map[string]any{"flag": true},
		map[string]any{"flag": false},
		map[string]any{"other": 1},
		"not a record",
	}

	result, err := a.Aggregate(context.Background(), items, StrategyStats, Params{Fields: []string{"flag"}})
	require.NoError(t, err)
	require.True(t, result.Success, "a valueless field must not fail the call")

	fields := result.Value.(map[string]any)["fields"].(map[string]any)
	flag := fields["flag"].(map[string]any)
	assert.Equal(t, 0, flag["count"])
	assert.Contains(t, flag["error"], "no numeric values")
}

func TestStatsSingleValueOmitsMedianStdev(t *testing.T) {
	a := New(nil)

	items := []any{map[string]any{"n": 5}}
	result, err := a.Aggregate(context.Background(), items, StrategyStats, Params{Fields: []string{"n"}})
	require.NoError(t, err)

	entry := result.Value.(map[string]any)["fields"].(map[string]any)["n"].(map[string]any)
	assert.Equal(t, 1, entry["count"])
	assert.NotContains(t, entry, "median")
	assert.NotContains(t, entry, "stdev")
}

func TestFilterSubsequence(t *testing.T) {
	a := New(nil)
	items := []any{1, 2, 3, 4, 5, 6}

	even := func(item any) bool { return item.(int)%2 == 0 }
	result, err := a.Aggregate(context.Background(), items, StrategyFilter, Params{Predicate: even})
	require.NoError(t, err)
	require.True(t, result.Success)

	kept := result.Value.([]any)
	assert.Equal(t, []any{2, 4, 6}, kept)
	assert.Equal(t, 6, result.ItemCount)
}

func TestFilterNilPredicateKeepsAll(t *testing.T) {
	a := New(nil)
	items := []any{"a", "b"}

	result, err := a.Aggregate(context.Background(), items, StrategyFilter, Params{})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, result.Value)
}

func TestEmptyInputLaw(t *testing.T) {
	a := New(nil)

	for _, strategy := range []Strategy{StrategyConcat, StrategyStats, StrategyFilter, StrategyCustom} {
		result, err := a.Aggregate(context.Background(), []any{}, strategy, Params{})
		require.NoError(t, err, "strategy %s", strategy)
		assert.True(t, result.Success, "strategy %s", strategy)
		assert.Nil(t, result.Value, "strategy %s", strategy)
		assert.Equal(t, 0, result.ItemCount, "strategy %s", strategy)
	}
}

func TestUnknownStrategyIsHardError(t *testing.T) {
	a := New(nil)

	_, err := a.Aggregate(context.Background(), []any{1}, Strategy("median"), Params{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigUnknownStrategy, errors.CodeOf(err))
}

func TestStrategyFaultIsContained(t *testing.T) {
	a := New(nil)

	exploding := func(item any) bool { panic("predicate exploded") }
	result, err := a.Aggregate(context.Background(), []any{1, 2}, StrategyFilter, Params{Predicate: exploding})
	require.NoError(t, err, "strategy faults must not escape")

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "predicate exploded")
	assert.Equal(t, 2, result.ItemCount)
}

func TestCustomWithoutCodeFails(t *testing.T) {
	a := New(nil)

	result, err := a.Aggregate(context.Background(), []any{1}, StrategyCustom, Params{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "requires code")
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"concat", StrategyConcat, false},
		{"STATS", StrategyStats, false},
		{" filter ", StrategyFilter, false},
		{"custom", StrategyCustom, false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCustomStrategyRunsInSandbox(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	a := New(sandbox.NewRunner())
	code := &sandbox.CodeSpec{
		Language:       sandbox.LanguagePython,
		Source:         "def aggregate(items):\n    return sum(items)\n",
		TimeoutSeconds: 10,
	}

	result, err := a.Aggregate(context.Background(), []any{1, 2, 3}, StrategyCustom, Params{Code: code})
	require.NoError(t, err)
	require.True(t, result.Success, "error: %s", result.Err)
	assert.Equal(t, 6.0, result.Value)
	assert.Equal(t, 3, result.ItemCount)
}
