package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name     string
		rawURL   string
		fallback string
		want     string
	}{
		{"full URL", "https://shop.example.com/checkout?step=2", "demo", "shop.example.com"},
		{"URL with port", "https://example.com:8443/home", "demo", "example.com"},
		{"no host", "/relative/path", "demo", "demo"},
		{"unparseable", "http://exa mple.com/", "demo", "demo"},
		{"empty", "", "demo", "demo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.rawURL, tt.fallback))
		})
	}
}

func TestExtractPath(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"strips query", "https://example.com/checkout?step=2", "/checkout"},
		{"strips fragment", "https://example.com/docs#install", "/docs"},
		{"bare host", "https://example.com", "/"},
		{"already a path", "/home", "/home"},
		{"unparseable falls back to raw", "http://exa mple.com/x", "http://exa mple.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPath(tt.rawURL))
		})
	}
}
