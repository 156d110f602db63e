package voice

import "testing"

func TestSanitizeSpeechText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drops emoji and markdown markers",
			in:   "Sure \U0001f60a **let's** do this now.",
			want: "Sure let's do this now.",
		},
		{
			name: "keeps markdown link label and removes url",
			in:   "Read [the docs](https://example.com/docs) first.",
			want: "Read the docs first.",
		},
		{
			name: "removes code blocks and inline code",
			in:   "```bash\nnpm run dev\n```\nThen run `make test`",
			want: "Then run",
		},
		{
			name: "collapses marker runs",
			in:   "Hello***world",
			want: "Hello world",
		},
		{
			name: "keeps sentence punctuation",
			in:   "Wait. Really? Yes!",
			want: "Wait. Really? Yes!",
		},
		{
			name: "empty after cleanup",
			in:   "***",
			want: "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeSpeechText(tc.in)
			if got != tc.want {
				t.Fatalf("sanitizeSpeechText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEscapeSSML(t *testing.T) {
	got := escapeSSML(`Tom & Jerry <3 "quotes" 'apostrophe'`)
	want := "Tom &amp; Jerry &lt;3 &quot;quotes&quot; &apos;apostrophe&apos;"
	if got != want {
		t.Fatalf("escapeSSML() = %q, want %q", got, want)
	}
}
