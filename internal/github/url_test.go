package github

import (
	"errors"
	"net/url"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"https", "https://github.com/o/r/releases/download/v1/a.tgz", "https://github.com/o/r/releases/download/v1/a.tgz", false},
		{"http", "http://example.com/x?y=1", "http://example.com/x?y=1", false},
		{"malformed", "::not a url::", "", true},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"no scheme", "github.com/o/r", "", true},
		{"unsupported scheme", "ftp://example.com/f", "", true},
		{"missing host", "https:///path", "", true},
		{"bad escape", "https://example.com/%zz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.raw, got)
				}
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidURL", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.raw, got.String(), tt.want)
			}
		})
	}
}

func TestParseRef_Relative(t *testing.T) {
	base, _ := url.Parse("https://example.com/a/b?c=d")

	tests := []struct {
		raw  string
		want string
	}{
		{"/elsewhere", "https://example.com/elsewhere"},
		{"next", "https://example.com/a/next"},
		{"//cdn.example.com/f", "https://cdn.example.com/f"},
		{"https://other.example.com/z", "https://other.example.com/z"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRef(base, tt.raw)
			if err != nil {
				t.Fatalf("ParseRef(%q) error = %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseRef(%q) = %q, want %q", tt.raw, got.String(), tt.want)
			}
		})
	}
}

func TestParseRef_Malformed(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	if _, err := ParseRef(base, "::not a url::"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("ParseRef() error = %v, want ErrInvalidURL", err)
	}
}

func TestNormalizeEmbeddedPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://github.com/o/r", "https://github.com/o/r"},
		{"https:/github.com/o/r", "https://github.com/o/r"},
		{"https:///github.com/o/r", "https://github.com/o/r"},
		{"http://github.com/o/r", "https://github.com/o/r"},
		{"http:/github.com/o/r", "https://github.com/o/r"},
		{"github.com/o/r", "github.com/o/r"},
		{"favicon.ico", "favicon.ico"},
	}

	for _, tt := range tests {
		if got := NormalizeEmbeddedPath(tt.in); got != tt.want {
			t.Errorf("NormalizeEmbeddedPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"github.com/o/r/tags", "https://github.com/o/r/tags"},
		{"https://github.com/o/r/tags", "https://github.com/o/r/tags"},
		{"http://github.com/o/r/tags", "http://github.com/o/r/tags"},
	}

	for _, tt := range tests {
		if got := EnsureScheme(tt.in); got != tt.want {
			t.Errorf("EnsureScheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBlobToRaw(t *testing.T) {
	got := BlobToRaw("https://github.com/o/r/blob/main/docs/blob/f.md")
	want := "https://github.com/o/r/raw/main/docs/blob/f.md"
	if got != want {
		t.Errorf("BlobToRaw() = %q, want %q", got, want)
	}
}

func TestJSDelivrURL(t *testing.T) {
	tests := []struct {
		name string
		path string
		base string
		want string
	}{
		{"default base", "https://github.com/o/r/blob/main/f.txt", "", "https://cdn.jsdelivr.net/gh/o/r@main/f.txt"},
		{"explicit base", "https://github.com/o/r/blob/main/f.txt", DefaultCDNBaseURL, "https://cdn.jsdelivr.net/gh/o/r@main/f.txt"},
		{"no scheme", "github.com/o/r/blob/v1.2.0/dir/f.js", "", "https://cdn.jsdelivr.net/gh/o/r@v1.2.0/dir/f.js"},
		{"trailing slash base", "https://github.com/o/r/blob/main/f.txt", "https://fastly.jsdelivr.net/gh/", "https://fastly.jsdelivr.net/gh/o/r@main/f.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JSDelivrURL(tt.path, tt.base); got != tt.want {
				t.Errorf("JSDelivrURL(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
