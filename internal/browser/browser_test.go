package browser

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "vi-VN", opts.Locale)
	assert.True(t, strings.HasPrefix(opts.UserAgent, "Mozilla/5.0"))
}

func TestWaitState(t *testing.T) {
	tests := []struct {
		in   string
		want *playwright.WaitUntilState
	}{
		{"domcontentloaded", playwright.WaitUntilStateDomcontentloaded},
		{"networkidle", playwright.WaitUntilStateNetworkidle},
		{"load", playwright.WaitUntilStateLoad},
		{"commit", playwright.WaitUntilStateCommit},
		{"", playwright.WaitUntilStateLoad},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, WaitState(tt.in))
		})
	}
}

func TestLauncher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLauncher(nil, nil).Launch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBrowser_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("skipping integration test; set INTEGRATION_TEST=true to run")
	}

	session, err := NewLauncher(DefaultOptions(), nil).Launch(context.Background())
	require.NoError(t, err)
	defer session.Close()

	err = session.Navigate(context.Background(), "https://www.thegioididong.com/dtdd", NavigateOptions{
		WaitUntil: "domcontentloaded",
		Timeout:   60 * time.Second,
		Settle:    time.Second,
	})
	require.NoError(t, err)

	html, err := session.Content(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "<html")
}
