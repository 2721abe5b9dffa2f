package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildsight/buildsight/internal/app"
	_ "github.com/buildsight/buildsight/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
