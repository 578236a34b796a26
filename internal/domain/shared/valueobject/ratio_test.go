package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRatio(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"zero", "0", false},
		{"one", "1", false},
		{"fraction", "0.08", false},
		{"negative", "-0.01", true},
		{"above one", "1.0001", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRatio(d(tt.value))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRatio_Conversions(t *testing.T) {
	r, err := RatioFromPercent(d("80"))
	require.NoError(t, err)
	assert.True(t, r.Equal(MustRatio("0.8")))
	assert.True(t, r.Percent().Equal(d("80")))
	assert.True(t, r.Complement().Equal(MustRatio("0.2")))

	_, err = RatioFromPercent(d("120"))
	assert.Error(t, err)
}

func TestRatio_JSON(t *testing.T) {
	var r Ratio
	require.NoError(t, json.Unmarshal([]byte(`0.25`), &r))
	assert.True(t, r.Equal(MustRatio("0.25")))

	require.NoError(t, json.Unmarshal([]byte(`"0.5"`), &r))
	assert.True(t, r.Equal(MustRatio("0.5")))

	data, err := json.Marshal(MustRatio("0.125"))
	require.NoError(t, err)
	assert.Equal(t, `"0.125"`, string(data))

	require.NoError(t, json.Unmarshal([]byte(`1.5`), &r))
	assert.False(t, r.IsValid())
}
