package types

import "testing"

func TestCodeFencesPlainProse(t *testing.T) {
	segs := CodeFences("no code here")
	if len(segs) != 1 || segs[0].Code || segs[0].Text != "no code here" {
		t.Fatalf("segments = %+v", segs)
	}
}

func TestCodeFencesExtractsBlock(t *testing.T) {
	text := "before\n```go\nfmt.Println(\"hi\")\n```after"
	segs := CodeFences(text)
	if len(segs) != 3 {
		t.Fatalf("got %d segments: %+v", len(segs), segs)
	}
	if segs[0].Code || segs[0].Text != "before\n" {
		t.Fatalf("prose head = %+v", segs[0])
	}
	if !segs[1].Code || segs[1].Language != "go" || segs[1].Text != "fmt.Println(\"hi\")\n" {
		t.Fatalf("code segment = %+v", segs[1])
	}
	if segs[2].Code || segs[2].Text != "after" {
		t.Fatalf("prose tail = %+v", segs[2])
	}
}

func TestCodeFencesUnterminatedIsProse(t *testing.T) {
	text := "start ```python\nprint(1)"
	segs := CodeFences(text)
	if len(segs) != 1 || segs[0].Code {
		t.Fatalf("segments = %+v", segs)
	}
}

func TestCodeFencesEmptyInput(t *testing.T) {
	segs := CodeFences("")
	if len(segs) != 1 || segs[0].Text != "" {
		t.Fatalf("segments = %+v", segs)
	}
}

func TestJoinSegmentsRoundTrip(t *testing.T) {
	cases := []string{
		"plain text only",
		"a\n```go\ncode\n```b",
		"```\nbare fence\n```",
		"two\n```js\nfirst()\n```mid\n```py\nsecond()\n```tail",
		"start ```unclosed\nrest",
	}
	for _, text := range cases {
		if got := JoinSegments(CodeFences(text)); got != text {
			t.Errorf("round trip changed text:\n in: %q\nout: %q", text, got)
		}
	}
}
