package main

import (
	"strings"
	"testing"
)

func TestRenderMarkdownPlainText(t *testing.T) {
	got := renderMarkdown("Hello **there**, how can I help?")
	if got != "Hello there, how can I help?" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderMarkdownLists(t *testing.T) {
	got := renderMarkdown("Options:\n\n- refund\n- exchange")
	if !strings.Contains(got, "  - refund") || !strings.Contains(got, "  - exchange") {
		t.Fatalf("bullets lost: %q", got)
	}
}

func TestRenderMarkdownCodeBlock(t *testing.T) {
	got := renderMarkdown("Run this:\n\n```\nmake install\n```\n")
	if !strings.Contains(got, "    make install") {
		t.Fatalf("code block not indented: %q", got)
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("app-abcdefghijklmnopqrstuvwx"); got != "app-...uvwx" {
		t.Fatalf("got %q", got)
	}
	if got := maskKey("short"); got != "****" {
		t.Fatalf("short key not masked: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("got %q", got)
	}
	if got := truncate("short", 8); got != "short" {
		t.Fatalf("got %q", got)
	}
}
