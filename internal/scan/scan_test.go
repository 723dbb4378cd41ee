package scan

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/subcheck/internal/model"
)

// requireTiling checks that regions cover src exactly once, in order.
func requireTiling(t *testing.T, src []byte, regions []model.Region) {
	t.Helper()
	var buf bytes.Buffer
	pos := 0
	for i, r := range regions {
		require.Equalf(t, pos, r.Start, "region %d starts at %d, want %d", i, r.Start, pos)
		require.Greaterf(t, r.End, r.Start, "region %d is empty", i)
		buf.Write(src[r.Start:r.End])
		pos = r.End
	}
	require.Equal(t, len(src), pos, "regions do not reach end of input")
	require.Equal(t, string(src), buf.String())
}

func kinds(regions []model.Region) []model.RegionKind {
	out := make([]model.RegionKind, len(regions))
	for i, r := range regions {
		out[i] = r.Kind
	}
	return out
}

func names(sites []model.CallSite) []string {
	out := make([]string, len(sites))
	for i, s := range sites {
		out[i] = s.Name
	}
	return out
}

func TestRegionsTileInput(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"empty":                "",
		"plain code":           "int x = 1;\n",
		"line comment":         "a // b\nc",
		"block comment":        "a /* b */ c",
		"comment at eof":       "x; // trailing",
		"string with escapes":  `s = "a\"b\\"; t = 1;`,
		"comment in string":    `s = "/* not a comment // either";`,
		"char quote":           `c = '"'; d = '\'';`,
		"unterminated string":  "s = \"abc\nfoo(1);",
		"unterminated comment": "x; /* never closed",
		"unterminated char":    "c = '",
		"trailing backslash":   `s = "abc\`,
		"crlf":                 "a // b\r\nc(1);\r\n",
		"continued comment":    "// one \\\n two\nx(1);",
		"header":               "/* ****** */\n/* By: me <me@42.fr> */\n#include <unistd.h>\n",
		"adjacent":             `"a""b"'c'/**///x`,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			src := []byte(in)
			requireTiling(t, src, Regions(src, model.C))
			requireTiling(t, src, Regions(src, model.CPP))
		})
	}
}

func TestRegionsKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []model.RegionKind
	}{
		{"line comment leaves newline in code", "a // b\nc",
			[]model.RegionKind{model.Code, model.LineComment, model.Code}},
		{"block comment", "a /* b */ c",
			[]model.RegionKind{model.Code, model.BlockComment, model.Code}},
		{"comments do not nest", "/* /* */ g(1); */",
			[]model.RegionKind{model.BlockComment, model.Code}},
		{"comment start inside string", `x = "/* y */";`,
			[]model.RegionKind{model.Code, model.StringLiteral, model.Code}},
		{"escaped quote keeps string open", `"a\"b" c`,
			[]model.RegionKind{model.StringLiteral, model.Code}},
		{"double quote inside char", `'"' x`,
			[]model.RegionKind{model.CharLiteral, model.Code}},
		{"unterminated block comment", "x /* y",
			[]model.RegionKind{model.Code, model.BlockComment}},
		{"slash-star-slash does not close", "/*/ x */",
			[]model.RegionKind{model.BlockComment}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, kinds(Regions([]byte(tt.in), model.C)))
		})
	}
}

func TestRegionsDigitSeparator(t *testing.T) {
	t.Parallel()

	src := []byte("int x = 1'000'000;\nf(x);\n")
	regions := Regions(src, model.CPP)
	requireTiling(t, src, regions)
	assert.Equal(t, []model.RegionKind{model.Code}, kinds(regions))

	// Character literal prefixes are not digit separators.
	src = []byte("auto c = u8'a'; L'b';")
	assert.Contains(t, kinds(Regions(src, model.CPP)), model.CharLiteral)
}

func callSites(in string) []model.CallSite {
	src := []byte(in)
	return CallSites("test.c", src, Regions(src, model.C))
}

func TestCallSitesIgnoreComments(t *testing.T) {
	t.Parallel()

	assert.Empty(t, callSites("// calls forbidden_fn()\n"))
	assert.Empty(t, callSites("/* forbidden_fn(1); */"))
	assert.Empty(t, callSites("/*\n * forbidden_fn(x)\n */\n"))
}

func TestCallSitesIgnoreLiterals(t *testing.T) {
	t.Parallel()

	assert.Empty(t, callSites(`char *s = "forbidden_fn(";`))
	assert.Empty(t, callSites(`char *s = "say \"forbidden_fn(\" twice";`))
	assert.Empty(t, callSites(`char c = '(';`))
}

func TestCallSitesPosition(t *testing.T) {
	t.Parallel()

	sites := callSites("forbidden_fn(x);")
	require.Len(t, sites, 1)
	assert.Equal(t, model.CallSite{Name: "forbidden_fn", File: "test.c", Line: 1, Column: 1, Offset: 0}, sites[0])

	sites = callSites("int\tmain(void)\n{\n\tprintf(\"%d\", 1);\n}\n")
	require.Len(t, sites, 2)
	assert.Equal(t, "main", sites[0].Name)
	assert.Equal(t, 1, sites[0].Line)
	assert.Equal(t, 5, sites[0].Column)
	assert.Equal(t, "printf", sites[1].Name)
	assert.Equal(t, 3, sites[1].Line)
	assert.Equal(t, 2, sites[1].Column)
}

func TestCallSitesKeywords(t *testing.T) {
	t.Parallel()

	src := "if (a) while (b) return (c); x = sizeof(int); void (*fn)(int);\n#if defined(FOO)\n#endif\n"
	assert.Empty(t, callSites(src))
}

func TestCallSitesWhitespaceAndComments(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"foo"}, names(callSites("foo /* gap */ (1);")))
	assert.Equal(t, []string{"foo"}, names(callSites("foo\n\t(1);")))
	assert.Equal(t, []string{"foo"}, names(callSites("foo // gap\n(1);")))
	assert.Empty(t, callSites(`foo "(";`))
	assert.Empty(t, callSites("foo;"))
}

func TestCallSitesNested(t *testing.T) {
	t.Parallel()

	got := names(callSites("write(1, ft_itoa(strlen(s)), 3);"))
	assert.Equal(t, []string{"write", "ft_itoa", "strlen"}, got)
}

func TestCallSitesNumbersAndIdentifiers(t *testing.T) {
	t.Parallel()

	assert.Empty(t, callSites("x = 0x1f(2);"))
	assert.Equal(t, []string{"f2"}, names(callSites("y = f2(3);")))
	assert.Equal(t, []string{"mlx_hook"}, names(callSites("mlx_hook(win, 2, 1L<<0, &key, data);")))
}

func TestCallSitesRecoverAfterUnterminatedString(t *testing.T) {
	t.Parallel()

	sites := callSites("s = \"abc\nfoo(1);")
	require.Len(t, sites, 1)
	assert.Equal(t, "foo", sites[0].Name)
	assert.Equal(t, 2, sites[0].Line)
}

func TestCallSitesEscapedQuoteThenCall(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"puts", "bar"}, names(callSites(`puts("a\"/* no */"); bar(2);`)))
}

func cppCallSites(in string) []model.CallSite {
	src := []byte(in)
	return CallSites("test.cpp", src, Regions(src, model.CPP))
}

func TestRegionsRawString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []model.RegionKind
		text string
	}{
		{"plain", `s = R"(say " printf(1) )"; f();`,
			[]model.RegionKind{model.Code, model.StringLiteral, model.Code}, `R"(say " printf(1) )"`},
		{"delimiter", `s = R"xy(a )" printf(2) )xy";`,
			[]model.RegionKind{model.Code, model.StringLiteral, model.Code}, `R"xy(a )" printf(2) )xy"`},
		{"encoding prefix", `auto s = u8R"(a)";`,
			[]model.RegionKind{model.Code, model.StringLiteral, model.Code}, `u8R"(a)"`},
		{"multi-line", "s = R\"(\nprintf(3)\n)\";",
			[]model.RegionKind{model.Code, model.StringLiteral, model.Code}, "R\"(\nprintf(3)\n)\""},
		{"unterminated", `x = R"(abc printf(4)`,
			[]model.RegionKind{model.Code, model.StringLiteral}, `R"(abc printf(4)`},
		{"identifier ending in R", `FOOR"(x)";`,
			[]model.RegionKind{model.Code, model.StringLiteral, model.Code}, `"(x)"`},
		{"space in delimiter", `R" (x)";`,
			[]model.RegionKind{model.Code, model.StringLiteral, model.Code}, `" (x)"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := []byte(tt.in)
			regions := Regions(src, model.CPP)
			requireTiling(t, src, regions)
			require.Equal(t, tt.want, kinds(regions))
			assert.Equal(t, tt.text, string(src[regions[1].Start:regions[1].End]))
		})
	}
}

func TestCallSitesIgnoreRawStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"f"}, names(cppCallSites(`s = R"(say " printf(1) )"; f();`)))
	assert.Equal(t, []string{"g"}, names(cppCallSites(`s = LR"--(")" malloc(2))--"; g();`)))
}

func TestCallSitesSkipMemberCalls(t *testing.T) {
	t.Parallel()

	src := "p->free(1); q.free(2); s . next (3); p-> /* c */ free(4);\nfree(x); std::printf(\"a\"); ::malloc(1);"
	assert.Equal(t, []string{"free", "printf", "malloc"}, names(cppCallSites(src)))
	assert.Equal(t, []string{"fn"}, names(callSites("if (a > fn(b)) x--;")))
}

func TestCallSitesReportMacroBodiesAndDeclarations(t *testing.T) {
	t.Parallel()

	got := names(cppCallSites("#define LOG(x) printf(x)\nclass A {\n\tvoid free(int);\n};\n"))
	assert.Equal(t, []string{"LOG", "printf", "free"}, got)
}

func FuzzRegions(f *testing.F) {
	for _, seed := range []string{
		"",
		"int main(void) { printf(\"%d\\n\", 1); }",
		"a // b\\\nc(1);\n/* d( */ e('(');",
		`s = R"xy(a )" p(2) )xy"; q();`,
		"x = 1'000'000; u8'a'; L\"s\\\"\" f(g(h(1)));",
		"p->free(1); q . g (2); \"unterminated\nk(3);",
		"\"\\\r\n\" '\\",
	} {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, src []byte) {
		for _, kind := range []model.Kind{model.C, model.CPP} {
			regions := Regions(src, kind)
			requireTiling(t, src, regions)

			for _, s := range CallSites("fuzz.c", src, regions) {
				end := s.Offset + len(s.Name)
				require.LessOrEqual(t, end, len(src))
				require.Equal(t, s.Name, string(src[s.Offset:end]))

				var inCode bool
				for _, r := range regions {
					if r.Start <= s.Offset && end <= r.End {
						inCode = r.Kind == model.Code
						break
					}
				}
				require.Truef(t, inCode, "call site %q at %d is outside a code region", s.Name, s.Offset)
			}
		}
	})
}
