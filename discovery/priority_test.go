/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionOrderAscendingPriority(t *testing.T) {
	in := []Instance{
		{Name: "c", Priority: 50},
		{Name: "a", Priority: 0},
		{Name: "b", Priority: 10},
	}
	out := SelectionOrder(in)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Name, out[1].Name, out[2].Name})
}

func TestSelectionOrderDropsDoNotAdvertise(t *testing.T) {
	in := []Instance{
		{Name: "x", Priority: PriorityDoNotAdvertise},
		{Name: "y", Priority: 5},
	}
	out := SelectionOrder(in)
	assert.Len(t, out, 1)
	assert.Equal(t, "y", out[0].Name)
}

func TestSelectionOrderShufflesWithinTies(t *testing.T) {
	// Statistical property (§8.3): among minimal-priority instances the
	// selection is uniformly random across runs. With 4 equal-priority
	// instances over many trials, every instance should appear first
	// with roughly equal frequency; assert it's not always the same one.
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		in := []Instance{
			{Name: "a", Priority: 1}, {Name: "b", Priority: 1},
			{Name: "c", Priority: 1}, {Name: "d", Priority: 1},
		}
		out := SelectionOrder(in)
		seen[out[0].Name]++
	}
	assert.Greater(t, len(seen), 1, "expected more than one distinct instance to win first place across 200 runs, got %v", seen)
}

func TestMatchesSettings(t *testing.T) {
	inst := Instance{APIVer: []string{"v1.2", "v1.3"}, APIProto: "http", APIAuth: false}
	assert.True(t, MatchesSettings(inst, []string{"v1.3"}, "http", false))
	assert.False(t, MatchesSettings(inst, []string{"v1.4"}, "http", false))
	assert.False(t, MatchesSettings(inst, []string{"v1.3"}, "https", false))
	assert.False(t, MatchesSettings(inst, []string{"v1.3"}, "http", true))
}

func TestWithFallback(t *testing.T) {
	fb := &Instance{Name: "static"}
	assert.Equal(t, []Instance{*fb}, WithFallback(nil, fb))
	real := []Instance{{Name: "real"}}
	assert.Equal(t, real, WithFallback(real, fb))
}
