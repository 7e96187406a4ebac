package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedURL(t *testing.T) {
	got, err := feedURL("https://pos.example.com/", "abc.def")
	require.NoError(t, err)
	assert.Equal(t, "wss://pos.example.com/api/v1/ws/staff?token=abc.def", got)

	got, err = feedURL("http://localhost:8002", "t")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8002/api/v1/ws/staff?token=t", got)
}
