package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func collect(t *testing.T, input string) []Message {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var out []Message
	for r.Next() {
		out = append(out, r.Message())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out
}

func TestReaderParsesMessages(t *testing.T) {
	input := "id: 1\ndata: {\"id\":1}\n\n" +
		": heartbeat\n\n" +
		"event: update\ndata:first\ndata: second\n\n" +
		"retry: 3000\nunknown: x\ndata: third\r\n\r\n"
	got := collect(t, input)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(got), got)
	}
	if got[0].ID != "1" || got[0].Data != `{"id":1}` {
		t.Fatalf("unexpected first message: %+v", got[0])
	}
	if got[1].Type != "update" || got[1].Data != "first\nsecond" {
		t.Fatalf("unexpected second message: %+v", got[1])
	}
	if got[2].Data != "third" || got[2].ID != "" {
		t.Fatalf("unexpected third message: %+v", got[2])
	}
}

func TestReaderCommentOnlyStreamYieldsNothing(t *testing.T) {
	if got := collect(t, ": heartbeat\n\n: heartbeat\n\n"); len(got) != 0 {
		t.Fatalf("expected no messages, got %+v", got)
	}
}

func TestReaderDispatchesTrailingMessageAtEOF(t *testing.T) {
	got := collect(t, "data: tail")
	if len(got) != 1 || got[0].Data != "tail" {
		t.Fatalf("unexpected messages: %+v", got)
	}
}

func TestReaderEmptyDataLineIsDispatched(t *testing.T) {
	got := collect(t, "data:\n\n")
	if len(got) != 1 || got[0].Data != "" {
		t.Fatalf("expected one empty message, got %+v", got)
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReaderReportsReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewReader(io.MultiReader(strings.NewReader("data: ok\n\n"), failingReader{err: boom}))
	if !r.Next() || r.Message().Data != "ok" {
		t.Fatalf("expected first message before the error")
	}
	if r.Next() {
		t.Fatalf("expected Next to stop on error")
	}
	if !errors.Is(r.Err(), boom) {
		t.Fatalf("expected %v, got %v", boom, r.Err())
	}
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Message{ID: "42", Data: "line one\nline two"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteComment(&buf, "heartbeat"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	want := "id: 42\ndata: line one\ndata: line two\n\n: heartbeat\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected framing:\n%q\nwant\n%q", buf.String(), want)
	}
	got := collect(t, buf.String())
	if len(got) != 1 || got[0].ID != "42" || got[0].Data != "line one\nline two" {
		t.Fatalf("unexpected parse: %+v", got)
	}
}
