package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractParams(t *testing.T) {
	tests := []struct {
		name     string
		params   interface{}
		expected []interface{}
	}{
		{
			name:     "flat list",
			params:   []interface{}{"one", "two", "three"},
			expected: []interface{}{"one", "two", "three"},
		},
		{
			name: "nested maps and lists",
			params: map[string]interface{}{
				"b": map[string]interface{}{"c": "test3"},
			},
			expected: []interface{}{"test3"},
		},
		{
			name:     "string slice",
			params:   []string{"x", "y"},
			expected: []interface{}{"x", "y"},
		},
		{
			name:     "scalar",
			params:   42,
			expected: []interface{}{42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.expected, ExtractParams(tt.params))
		})
	}
}

func TestSignatureString(t *testing.T) {
	tests := []struct {
		name     string
		params   interface{}
		secret   string
		expected string
	}{
		{
			name:     "list params sorted lexicographically",
			params:   []interface{}{"one", "two", "three"},
			secret:   "secret",
			expected: "secretonethreetwo",
		},
		{
			name: "nested params flattened before sorting",
			params: map[string]interface{}{
				"a": []interface{}{"test1", "test2"},
				"b": map[string]interface{}{"c": "test3"},
			},
			secret:   "password",
			expected: "passwordtest1test2test3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SignatureString(tt.params, tt.secret))
		})
	}
}

func TestSignatureHash(t *testing.T) {
	tests := []struct {
		name     string
		params   interface{}
		secret   string
		expected string
	}{
		{
			name:     "list params",
			params:   []interface{}{"one", "two", "three"},
			secret:   "secret",
			expected: "764794f03e1e345c32d4c81aae2815eb",
		},
		{
			name: "nested params",
			params: map[string]interface{}{
				"a": []interface{}{"test1", "test2"},
				"b": map[string]interface{}{"c": "test3"},
			},
			secret:   "password",
			expected: "adde49d639598daa7ba79af7c2fff8f9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SignatureHash(tt.params, tt.secret))
		})
	}
}
