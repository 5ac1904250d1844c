package render

import "testing"

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text", in: "hello world", want: "hello world"},
		{name: "inline tags", in: "<b>bold</b> and <i>italic</i>", want: "bold and italic"},
		{name: "entities decoded", in: "Tom &amp; Jerry &lt;3", want: "Tom & Jerry <3"},
		{name: "paragraphs become lines", in: "<p>one</p><p>two</p>", want: "one\ntwo"},
		{name: "line breaks", in: "a<br>b<br/>c", want: "a\nb\nc"},
		{name: "script and style dropped", in: "<style>p{color:red}</style><p>x</p><script>alert(1)</script>", want: "x"},
		{name: "whitespace collapsed", in: "<div>  lots   of\n\n  space </div>", want: "lots of\n\nspace"},
		{name: "malformed markup", in: "<p>open <b>never closed", want: "open never closed"},
		{name: "empty", in: "", want: ""},
		{
			name: "rendered welcome",
			in:   "<h1>Welcome, Ada!</h1><p>Your code is ABC.</p>",
			want: "Welcome, Ada!\nYour code is ABC.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTags(tt.in); got != tt.want {
				t.Errorf("StripTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
