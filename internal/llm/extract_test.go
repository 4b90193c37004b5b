package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractArray(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		wantErr    bool
		wantLen    int
	}{
		{
			name:       "bare array",
			completion: `[{"feature":"minting","value":"no"}]`,
			wantLen:    1,
		},
		{
			name: "fenced array with prose",
			completion: "Here is my analysis:\n```json\n" +
				`[{"feature":"minting","value":"no"},{"feature":"honeypot","value":"yes"}]` +
				"\n```\nLet me know if you need more.",
			wantLen: 2,
		},
		{
			name:       "no array",
			completion: "I cannot analyze this contract.",
			wantErr:    true,
		},
		{
			name:       "brackets but invalid json",
			completion: "[not json]",
			wantErr:    true,
		},
		{
			name:       "empty completion",
			completion: "",
			wantErr:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out []map[string]string
			err := ExtractArray(tc.completion, &out)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			require.Len(t, out, tc.wantLen)
		})
	}
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		wantErr    bool
		wantIsScam int
	}{
		{
			name:       "bare object",
			completion: `{"token_name":"X","is_scam":1,"confidence":0.95}`,
			wantIsScam: 1,
		},
		{
			name: "fenced object with prose",
			completion: "Based on the history:\n```json\n" +
				`{"token_name":"Y","is_scam":0,"confidence":0.8}` +
				"\n```",
			wantIsScam: 0,
		},
		{
			name:       "no object",
			completion: "is_scam: 1",
			wantErr:    true,
		},
		{
			name:       "braces but invalid json",
			completion: "{broken",
			wantErr:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out struct {
				TokenName  string  `json:"token_name"`
				IsScam     int     `json:"is_scam"`
				Confidence float64 `json:"confidence"`
			}
			err := ExtractObject(tc.completion, &out)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantIsScam, out.IsScam)
		})
	}
}
