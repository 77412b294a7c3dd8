package github

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"https://github.com/o/r/releases/download/v1.0/app.tar.gz", KindReleases},
		{"github.com/o/r/releases/latest/download/app.zip", KindReleases},
		{"https://github.com/o/r/archive/refs/heads/main.zip", KindReleases},
		{"https://github.com/o/r/blob/main/f.txt", KindBlob},
		{"https://github.com/o/r/raw/main/f.txt", KindRaw},
		{"https://github.com/o/r/info/refs?service=git-upload-pack", KindInfo},
		{"https://github.com/o/r.git/git-upload-pack", KindInfo},
		{"https://raw.githubusercontent.com/o/r/main/f.txt", KindRaw},
		{"https://raw.github.com/o/r/main/dir/f.txt", KindRaw},
		{"https://gist.githubusercontent.com/o/0123abcd/raw/f.sh", KindGist},
		{"https://gist.github.com/o/0123abcd/raw", KindGist},
		{"https://github.com/o/r/tags", KindTags},
		{"https://github.com/o/r/tags.atom", KindTags},
		{"HTTPS://GITHUB.COM/o/r/BLOB/main/f.txt", KindBlob},
		{"http://github.com/o/r/Raw/main/f.txt", KindRaw},
		{"", KindUnknown},
		{"/", KindUnknown},
		{"favicon.ico", KindUnknown},
		{"https://github.com/o", KindUnknown},
		{"https://github.com/o/r", KindUnknown},
		{"https://example.com/o/r/releases/download/x", KindUnknown},
		{"https://raw.githubusercontent.com/o/r/main", KindUnknown},
		{"https://gist.github.com/o/0123abcd", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassify_RuleOrder(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Kind
	}{
		// Both the blob and raw rules match; blob comes first.
		{"blob before raw", "https://github.com/o/r/raw/main/blob/f.txt", KindBlob},
		{"releases before blob", "https://github.com/o/r/blob/main/releases/notes.md", KindReleases},
		{"raw before info", "https://github.com/o/r/raw/main/info/x", KindRaw},
		{"info before tags", "https://github.com/o/r/tags/git-x", KindInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindReleases, "releases"},
		{KindBlob, "blob"},
		{KindRaw, "raw"},
		{KindInfo, "info"},
		{KindGist, "gist"},
		{KindTags, "tags"},
		{KindUnknown, "unknown"},
		{Kind(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
