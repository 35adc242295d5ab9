package types

import "strings"

// Segment is one rendering unit of a message body: plain prose or a fenced
// code region. The scanner never rewrites text; joining the segments back
// with their fences reproduces the stored payload byte for byte.
type Segment struct {
	Code     bool   `json:"code"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

const fence = "```"

// CodeFences splits text into prose and fenced code segments. A fence opens
// with three backticks, an optional language tag, and a newline, and closes
// with three backticks. An unterminated fence is treated as prose so nothing
// is dropped.
func CodeFences(text string) []Segment {
	var segments []Segment
	rest := text

	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			break
		}

		header := rest[open+len(fence):]
		nl := strings.Index(header, "\n")
		if nl < 0 {
			break
		}
		lang := header[:nl]
		if strings.Contains(lang, "`") || strings.ContainsAny(lang, " \t") {
			// Not a fence header; leave the backticks as prose.
			break
		}

		body := header[nl+1:]
		closing := strings.Index(body, fence)
		if closing < 0 {
			break
		}

		if open > 0 {
			segments = append(segments, Segment{Text: rest[:open]})
		}
		segments = append(segments, Segment{
			Code:     true,
			Language: lang,
			Text:     body[:closing],
		})
		rest = body[closing+len(fence):]
	}

	if rest != "" || len(segments) == 0 {
		segments = append(segments, Segment{Text: rest})
	}
	return segments
}

// JoinSegments reassembles segments into the original message text.
func JoinSegments(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if !s.Code {
			b.WriteString(s.Text)
			continue
		}
		b.WriteString(fence)
		b.WriteString(s.Language)
		b.WriteString("\n")
		b.WriteString(s.Text)
		b.WriteString(fence)
	}
	return b.String()
}
