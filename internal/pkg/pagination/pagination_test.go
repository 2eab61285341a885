package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClamps(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Params
	}{
		{"defaults", 0, 0, Params{Page: 1, Limit: DefaultLimit, Offset: 0}},
		{"second page", 2, 10, Params{Page: 2, Limit: 10, Offset: 10}},
		{"limit capped", 1, 1000, Params{Page: 1, Limit: MaxLimit, Offset: 0}},
		{"negative page", -3, 5, Params{Page: 1, Limit: 5, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.page, tt.limit))
		})
	}
}

func TestMeta(t *testing.T) {
	m := New(2, 10).Meta(25)
	assert.Equal(t, int64(25), m.Total)
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)

	last := New(3, 10).Meta(25)
	assert.False(t, last.HasNext)

	empty := New(1, 10).Meta(0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}
