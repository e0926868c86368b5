package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCodeBlocks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []CodeBlock
	}{
		{
			name: "no code",
			in:   "just *text*",
			want: nil,
		},
		{
			name: "two blocks",
			in:   "Try this:\n\n```go\nfmt.Println(\"hi\")\n```\n\nand\n\n```\nls -la\npwd\n```\n",
			want: []CodeBlock{
				{Language: "go", Code: "fmt.Println(\"hi\")\n"},
				{Language: "", Code: "ls -la\npwd\n"},
			},
		},
		{
			name: "unterminated block mid-stream",
			in:   "```python\nprint(1)\n",
			want: []CodeBlock{{Language: "python", Code: "print(1)\n"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, CodeBlocks(tt.in)); diff != "" {
				t.Errorf("CodeBlocks() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarkdownDisabled(t *testing.T) {
	r, err := New(80, "", false)
	if err != nil {
		t.Fatal(err)
	}
	in := "# Title\n\n**bold**"
	if got := r.Markdown(in); got != in {
		t.Errorf("Markdown() = %q, want input unchanged", got)
	}
}

func TestMarkdownRenders(t *testing.T) {
	r, err := New(80, "notty", true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := r.Markdown("# Title\n\nsome **bold** text")
	if !strings.Contains(got, "Title") || !strings.Contains(got, "bold") {
		t.Errorf("Markdown() = %q", got)
	}
	if err := r.SetWidth(40); err != nil {
		t.Errorf("SetWidth() error = %v", err)
	}
}
