package main

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENGINE", "vectorized")
	t.Setenv("CORPUS_DIR", "")
	t.Setenv("ARTIFACT_DIR", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"normalize", "Mantap, barangnya bagus sekali!"}, "mantap barangnya bagus"},
		{[]string{"normalize", "--profile", "sequence", "Mantap!! 100%", "yang bagus"}, "mantap yang bagus"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestNormalizeUnknownProfile(t *testing.T) {
	if _, err := run(t, "normalize", "--profile", "bert", "bagus"); err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
}

func TestLexiconCommand(t *testing.T) {
	out, err := run(t, "lexicon")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Language: indonesian") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "lexicon", "--retained")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "tidak\n") {
		t.Errorf("retained terms should include tidak, got %q", out)
	}
}

func TestClassifyWithoutArtifacts(t *testing.T) {
	_, err := run(t, "classify", "bagus")
	if err == nil || !strings.Contains(err.Error(), "vectorizer artifact unavailable") {
		t.Fatalf("expected a missing vectorizer error, got %v", err)
	}
}
