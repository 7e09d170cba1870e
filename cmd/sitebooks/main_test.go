package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/app"
	_ "github.com/sitebooks/sitebooks/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
