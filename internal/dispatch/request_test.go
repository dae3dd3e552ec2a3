package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "single", raw: "Chrome", want: []string{"Chrome"}},
		{name: "ordered", raw: "Maps,Chrome,YouTube", want: []string{"Maps", "Chrome", "YouTube"}},
		{name: "trims whitespace", raw: " Gmail , Photos ", want: []string{"Gmail", "Photos"}},
		{name: "keeps case", raw: "chrome", want: []string{"chrome"}},
		{name: "keeps duplicates", raw: "Chrome,Chrome", want: []string{"Chrome", "Chrome"}},
		{name: "empty", raw: "", wantErr: true},
		{name: "blank", raw: "   ", wantErr: true},
		{name: "blank element", raw: "Chrome,,Maps", wantErr: true},
		{name: "trailing comma", raw: "Chrome,", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfiguration)
				assert.Equal(t, KindConfiguration, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `unrecognized app "Bogus"`, (&Error{Kind: KindUnrecognizedApplication, App: "Bogus"}).Error())
	assert.Contains(t, (&Error{Kind: KindLifecyclePhaseFailed, App: "Maps", Phase: PhaseExit, Err: assert.AnError}).Error(), "during exit")
	assert.Equal(t, "kind(99)", Kind(99).String())
	assert.Equal(t, Kind(0), KindOf(assert.AnError))
}
