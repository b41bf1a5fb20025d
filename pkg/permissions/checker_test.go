package permissions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eduflow/eduflow-backend/pkg/permissions"
)

func TestHas(t *testing.T) {
	tests := []struct {
		name     string
		held     []string
		required string
		want     bool
	}{
		{"exact match", []string{"timetable:generate"}, "timetable:generate", true},
		{"no match", []string{"timetable:read"}, "timetable:generate", false},
		{"global wildcard", []string{"*"}, "payment:create", true},
		{"domain wildcard", []string{"timetable:*"}, "timetable:finalize", true},
		{"domain wildcard wrong domain", []string{"timetable:*"}, "school:manage", false},
		{"empty requirement always passes", []string{}, "", true},
		{"empty held set", nil, "school:read", false},
		{"wildcard among others", []string{"school:read", "*"}, "audit:read", true},
		{"prefix is not a match", []string{"timetable"}, "timetable:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, permissions.Has(tt.held, tt.required))
		})
	}
}

func TestHasAny(t *testing.T) {
	held := []string{"school:read"}

	assert.True(t, permissions.HasAny(held, []string{"school:read", "school:manage"}))
	assert.True(t, permissions.HasAny(held, []string{"school:manage", "school:read"}))
	assert.False(t, permissions.HasAny(held, []string{"school:manage", "timetable:read"}))
	assert.False(t, permissions.HasAny(held, nil))
}

func TestHasAll(t *testing.T) {
	held := []string{"school:read", "school:manage"}

	assert.True(t, permissions.HasAll(held, []string{"school:read"}))
	assert.True(t, permissions.HasAll(held, []string{"school:read", "school:manage"}))
	assert.False(t, permissions.HasAll(held, []string{"school:read", "timetable:read"}))
	assert.True(t, permissions.HasAll([]string{"*"}, []string{"a:b", "c:d"}))
	assert.True(t, permissions.HasAll(held, nil))
}

func TestMerge(t *testing.T) {
	merged := permissions.Merge(
		[]string{"school:read", "school:manage"},
		[]string{"school:read", "timetable:read"},
	)

	assert.ElementsMatch(t, []string{"school:read", "school:manage", "timetable:read"}, merged)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "timetable", permissions.Domain("timetable:generate"))
	assert.Equal(t, "school", permissions.Domain("school"))
	assert.Equal(t, "*", permissions.Domain("*"))
}
