package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(nil, nil)

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Zero(t, bar.ResultCount())
	assert.Nil(t, bar.Init())
}

func TestBar_View_States(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Bar)
		want  []string
	}{
		{
			name:  "ready",
			setup: func(*Bar) {},
			want:  []string{"Ready", "enter: search"},
		},
		{
			name:  "querying",
			setup: func(b *Bar) { b.SetState(StateQuerying) },
			want:  []string{"Searching..."},
		},
		{
			name: "error",
			setup: func(b *Bar) {
				b.SetState(StateError)
				b.SetMessage("embedder unavailable")
			},
			want: []string{"Error: embedder unavailable"},
		},
		{
			name: "results with filter",
			setup: func(b *Bar) {
				b.SetState(StateResults)
				b.SetResultCount(3)
				b.SetFilter("tribunal=TS")
			},
			want: []string{"3 results [tribunal=TS]", "enter: open"},
		},
		{
			name: "ready with message",
			setup: func(b *Bar) {
				b.SetMessage("Type some words")
			},
			want: []string{"Type some words"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := NewBar(nil, nil)
			bar.SetWidth(160)
			tt.setup(bar)

			view := bar.View()
			for _, w := range tt.want {
				assert.Contains(t, view, w)
			}
		})
	}
}

func TestBar_Clear(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetState(StateResults)
	bar.SetResultCount(4)
	bar.SetMessage("x")
	bar.SetFilter("y")

	bar.Clear()

	assert.Equal(t, StateReady, bar.State())
	assert.Empty(t, bar.Message())
	assert.Zero(t, bar.ResultCount())
	assert.Empty(t, bar.filter)
}
