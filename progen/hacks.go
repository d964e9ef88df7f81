package progen

import "strings"

var precisionQualifiers = []string{"lowp", "mediump", "highp"}

// ApplyGLSLHacks removes the GLSL precision qualifiers lowp, mediump and
// highp from src.
//
// The removal is a plain substring replacement. Identifiers that contain
// one of the qualifiers (for example "highpass") are corrupted too, so
// templates fed through it must avoid such names.
func ApplyGLSLHacks(src string) string {
	for _, q := range precisionQualifiers {
		src = strings.ReplaceAll(src, q, "")
	}
	return src
}

// composeSource prepends one #define line per define to src.
func composeSource(defines []string, src string) string {
	if len(defines) == 0 {
		return src
	}
	var b strings.Builder
	n := len(src)
	for _, d := range defines {
		n += len("#define \n") + len(d)
	}
	b.Grow(n)
	for _, d := range defines {
		b.WriteString("#define ")
		b.WriteString(d)
		b.WriteByte('\n')
	}
	b.WriteString(src)
	return b.String()
}
