package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	args := parseArgs([]string{"1", "0.5", `"quoted"`, "plain", `{"a":true}`})
	assert.Equal(t, []any{float64(1), 0.5, "quoted", "plain", map[string]any{"a": true}}, args)
}

func TestRootCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"call", "send", "subscribe", "unsubscribe"} {
		assert.True(t, names[want], want)
	}
}
