package transcript

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRenderEscapesContent(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, Document{
		ChannelName: "booking-alice",
		Messages: []Message{
			{Author: "alice", Content: `<script>alert("x")</script>`, Timestamp: time.Unix(1000, 0)},
			{Author: "bob & co", Content: "see you there", Timestamp: time.Unix(2000, 0)},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "<script>alert") {
		t.Fatal("message content rendered unescaped")
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatal("escaped content missing from output")
	}
	if !strings.Contains(out, "bob &amp; co") {
		t.Fatal("author name not escaped")
	}
	if !strings.Contains(out, "Transcript for #booking-alice") {
		t.Fatal("channel heading missing")
	}
}

func TestRenderEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Document{ChannelName: "booking-empty"}); err != nil {
		t.Fatalf("render empty: %v", err)
	}
	if !strings.Contains(buf.String(), "</html>") {
		t.Fatal("document not closed")
	}
}
