package shader

import (
	"errors"
	"strings"
	"testing"
)

// code returns the non-empty lines of out, trimmed and joined by spaces.
func code(out string) string {
	var kept []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, " ")
}

func TestPreprocessConditionals(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		defines map[string]string
		want    string
	}{
		{
			name: "ifdef defined",
			src:  "#ifdef A\na\n#endif\nb",
			defines: map[string]string{
				"A": "",
			},
			want: "a b",
		},
		{
			name: "ifdef undefined",
			src:  "#ifdef A\na\n#endif\nb",
			want: "b",
		},
		{
			name: "ifndef with else",
			src:  "#ifndef A\nx\n#else\ny\n#endif",
			want: "x",
		},
		{
			name:    "elif chain",
			src:     "#if defined(A)\na\n#elif defined(B)\nb\n#else\nc\n#endif",
			defines: map[string]string{"B": ""},
			want:    "b",
		},
		{
			name:    "first true branch wins",
			src:     "#if defined(A)\na\n#elif defined(B)\nb\n#endif",
			defines: map[string]string{"A": "", "B": ""},
			want:    "a",
		},
		{
			name:    "nested inside inactive",
			src:     "#ifdef A\n#ifdef B\nab\n#else\nanb\n#endif\n#else\nna\n#endif",
			defines: map[string]string{"B": ""},
			want:    "na",
		},
		{
			name:    "logical operators",
			src:     "#if defined A && !defined(B) || defined(C)\nyes\n#endif",
			defines: map[string]string{"A": ""},
			want:    "yes",
		},
		{
			name:    "parentheses",
			src:     "#if !(defined(A) || defined(B))\nnone\n#else\nsome\n#endif",
			defines: map[string]string{"B": ""},
			want:    "some",
		},
		{
			name:    "numeric comparison",
			src:     "#if LIGHTS >= 4\nmany\n#elif LIGHTS > 0\nfew\n#endif",
			defines: map[string]string{"LIGHTS": "2"},
			want:    "few",
		},
		{
			name: "define and undef in source",
			src:  "#define A\n#ifdef A\na\n#endif\n#undef A\n#ifdef A\nstill\n#endif",
			want: "a",
		},
		{
			name: "define inside inactive block is ignored",
			src:  "#ifdef X\n#define A\n#endif\n#ifdef A\na\n#endif\nz",
			want: "z",
		},
		{
			name: "object-like substitution",
			src:  "#define COUNT 4u\nlet n = COUNT; // COUNT stays in comments",
			want: "let n = 4u; // COUNT stays in comments",
		},
		{
			name:    "substitution is recursive",
			src:     "#define B A\nlet x = B;",
			defines: map[string]string{"A": "1.0"},
			want:    "let x = 1.0;",
		},
		{
			name: "identifiers containing macro names are kept",
			src:  "#define A 1\nlet AB = A;",
			want: "let AB = 1;",
		},
		{
			name: "unknown directive in inactive block",
			src:  "#ifdef A\n#pragma anything\n#endif\nok",
			want: "ok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Preprocess(tt.src, tt.defines)
			if err != nil {
				t.Fatalf("Preprocess failed: %v", err)
			}
			if got := code(out); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPreprocessPreservesLines(t *testing.T) {
	src := "a\n#ifdef X\nb\n#else\nc\n#endif\nd"
	out, err := Preprocess(src, nil)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	want := strings.Count(src, "\n")
	if got := strings.Count(out, "\n"); got != want {
		t.Fatalf("expected %d newlines, got %d", want, got)
	}
	lines := strings.Split(out, "\n")
	if lines[0] != "a" || lines[4] != "c" || lines[6] != "d" {
		t.Errorf("code moved: %q", lines)
	}
}

func TestPreprocessDoesNotModifyDefines(t *testing.T) {
	defines := map[string]string{"A": ""}
	if _, err := Preprocess("#undef A\n#define B 1", defines); err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if _, ok := defines["A"]; !ok {
		t.Error("expected A to stay in the caller's map")
	}
	if _, ok := defines["B"]; ok {
		t.Error("expected B not to leak into the caller's map")
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unterminated", "#ifdef A\nx", "unterminated"},
		{"stray endif", "#endif", "without #if"},
		{"stray else", "#else", "without #if"},
		{"duplicate else", "#ifdef A\n#else\n#else\n#endif", "duplicate #else"},
		{"elif after else", "#ifdef A\n#else\n#elif 1\n#endif", "#elif after #else"},
		{"unknown directive", "#pragma once", "unknown directive"},
		{"error directive", "#error missing feature", "missing feature"},
		{"bad expression", "#if defined(\n#endif", "invalid macro name"},
		{"missing paren", "#if (1\n#endif", "missing ')'"},
		{"empty if", "#if\n#endif", "no expression"},
		{"bad character", "#if 1 + 2\n#endif", "unexpected character"},
		{"ifdef without name", "#ifdef\n#endif", "without a name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.src, nil)
			if !errors.Is(err, ErrPreprocess) {
				t.Fatalf("expected ErrPreprocess, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected error containing %q, got %q", tt.msg, err)
			}
		})
	}
}

func TestPreprocessErrorLine(t *testing.T) {
	_, err := Preprocess("a\nb\n#bogus", nil)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected error on line 3, got %v", err)
	}
}
