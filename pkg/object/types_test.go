package object

import "testing"

func TestNewTreeSpecSortsAndDefaults(t *testing.T) {
	spec, err := NewTreeSpec([]BlobRef{
		{Path: "src/main.go", Hash: HashBlob([]byte("b"))},
		{Path: "README.md", Hash: HashBlob([]byte("a")), Mode: TreeModeExecutable},
	})
	if err != nil {
		t.Fatalf("NewTreeSpec: %v", err)
	}
	paths := spec.Paths()
	if len(paths) != 2 || paths[0] != "README.md" || paths[1] != "src/main.go" {
		t.Fatalf("paths = %v", paths)
	}
	if spec.Entries[0].Mode != TreeModeExecutable {
		t.Fatalf("explicit mode lost: %q", spec.Entries[0].Mode)
	}
	if spec.Entries[1].Mode != TreeModeFile || spec.Entries[1].Kind != TypeBlob {
		t.Fatalf("defaults not applied: %+v", spec.Entries[1])
	}
}

func TestNewTreeSpecRejectsDuplicates(t *testing.T) {
	_, err := NewTreeSpec([]BlobRef{
		NewBlobRef("a.txt", HashBlob([]byte("1"))),
		NewBlobRef("a.txt", HashBlob([]byte("2"))),
	})
	if err == nil {
		t.Fatal("expected duplicate path error")
	}
	if _, err := NewTreeSpec([]BlobRef{{Path: " "}}); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestBranchRefNames(t *testing.T) {
	tests := []struct {
		in        string
		wantRef   string
		wantShort string
	}{
		{in: "main", wantRef: "refs/heads/main", wantShort: "main"},
		{in: "heads/feature/x", wantRef: "refs/heads/feature/x", wantShort: "feature/x"},
		{in: "refs/heads/dev", wantRef: "refs/heads/dev", wantShort: "dev"},
	}
	for _, tc := range tests {
		if got := BranchRef(tc.in); got != tc.wantRef {
			t.Fatalf("BranchRef(%q) = %q, want %q", tc.in, got, tc.wantRef)
		}
		if got := ShortBranch(tc.in); got != tc.wantShort {
			t.Fatalf("ShortBranch(%q) = %q, want %q", tc.in, got, tc.wantShort)
		}
	}
}
