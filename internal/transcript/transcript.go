// Package transcript renders a ticket channel's history as a standalone
// HTML document. html/template auto-escapes all interpolated content.
package transcript

import (
	"html/template"
	"io"
	"time"
)

// Message is one rendered entry of the channel history, oldest first.
type Message struct {
	Author    string
	AvatarURL string
	Content   string
	Timestamp time.Time
}

// Document bundles the render inputs.
type Document struct {
	ChannelName string
	Messages    []Message
}

var tmpl = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"stamp": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05 UTC") },
}).Parse(`<!DOCTYPE html>
<html><head><title>Transcript for {{.ChannelName}}</title>
<style>
body{font-family:sans-serif;background-color:#36393f;color:#dcddde;}
.message{display:flex;margin-bottom:1em;}
.avatar img{width:40px;height:40px;border-radius:50%;margin-right:10px;}
.username{font-weight:bold;}
.timestamp{color:#72767d;font-size:.8em;margin-left:.5em;}
</style></head>
<body><h1>Transcript for #{{.ChannelName}}</h1>
{{range .Messages}}<div class="message"><div class="avatar"><img src="{{.AvatarURL}}"></div><div><span class="username">{{.Author}}</span><span class="timestamp">{{stamp .Timestamp}}</span><div>{{.Content}}</div></div></div>
{{end}}</body></html>
`))

// Render writes the HTML transcript to w.
func Render(w io.Writer, doc Document) error {
	return tmpl.Execute(w, doc)
}
