package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Operator
	}{
		{"equals", OpEquals},
		{"", OpEquals},
		{"==", OpEquals},
		{"NOT_EQUALS", OpNotEquals},
		{"contains", OpContains},
		{"starts_with", OpStartsWith},
		{"ends_with", OpEndsWith},
		{"equals_ignore_case", OpEqualsFold},
		{">=", OpVersionAtLeast},
		{"glob", OpMatches},
	}
	for _, tt := range tests {
		got, err := ParseOperator(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseOperator("approximately")
	require.Error(t, err)
}

func TestOperator_Compare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		op       Operator
		actual   string
		expected string
		want     bool
		wantErr  bool
	}{
		{"fold accents", OpEqualsFold, "ÉCOLE", "école", true, false},
		{"version equal", OpVersionAtLeast, "22.04", "22.4", true, false},
		{"version with v", OpVersionAtLeast, "v1.10.0", "1.9", true, false},
		{"version unparsable actual", OpVersionAtLeast, "rolling", "1.0", false, false},
		{"version unparsable expected", OpVersionAtLeast, "1.0", "latest", false, true},
		{"glob question mark", OpMatches, "host-7", "host-?", true, false},
		{"glob anchored", OpMatches, "my-host-7", "host-*", false, false},
		{"glob quotes meta", OpMatches, "a.b", "a.b", true, false},
		{"glob dot literal", OpMatches, "axb", "a.b", false, false},
		{"unknown", Operator("near"), "a", "b", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.op.Compare(tt.actual, tt.expected)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
