package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeToolName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already safe", in: "list_pods", want: "list_pods"},
		{name: "spaces", in: "list pods", want: "list_pods"},
		{name: "dots and slashes", in: "k8s.io/list", want: "k8s_io_list"},
		{name: "hyphen preserved", in: "describe-node", want: "describe-node"},
		{name: "unicode", in: "météo", want: "m_t_o"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeToolName(tt.in))
		})
	}
}

func TestSanitizeToolNameIdempotent(t *testing.T) {
	safe := regexp.MustCompile(`^[A-Za-z0-9_-]*$`)
	inputs := []string{"list pods", "a.b/c:d", "héllo wörld", "ok_name", "!!!"}
	for _, in := range inputs {
		once := SanitizeToolName(in)
		assert.Regexp(t, safe, once)
		assert.Equal(t, once, SanitizeToolName(once))
	}
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"list_*", "describe_*"}

	assert.True(t, MatchesAny("list_pods", patterns))
	assert.True(t, MatchesAny("describe_node", patterns))
	assert.False(t, MatchesAny("delete_pod", patterns))
	assert.False(t, MatchesAny("list_pods", nil))

	// Malformed patterns are ignored rather than matching everything.
	assert.False(t, MatchesAny("anything", []string{"[unclosed"}))
}
