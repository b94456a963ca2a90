package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func transitionAllowed(from, to string) bool {
	for _, next := range issueStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func TestIssueStatusTransitions(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{"open", "in_progress", true},
		{"open", "closed", true},
		{"open", "resolved", false},
		{"in_progress", "resolved", true},
		{"in_progress", "open", true},
		{"in_progress", "closed", false},
		{"resolved", "closed", true},
		{"resolved", "open", true},
		{"resolved", "in_progress", false},
		{"closed", "open", true},
		{"closed", "resolved", false},
		{"closed", "in_progress", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, transitionAllowed(tc.from, tc.to),
			"流转 %s -> %s 判定不符", tc.from, tc.to)
	}
}

func TestIssueStatusTransitionsUnknownStatus(t *testing.T) {
	// 未知状态没有任何出边
	assert.Empty(t, issueStatusTransitions["archived"])
	assert.False(t, transitionAllowed("archived", "open"))
}
