package main

import "testing"

func TestSuggestCorrectCommand(t *testing.T) {
	tests := []struct {
		name    string
		unknown string
		args    []string
		want    string
		found   bool
	}{
		{
			name:    "parent after subcommand",
			unknown: "merge",
			args:    []string{"--yes", "merge", "session", "abc"},
			want:    "snabel --yes session merge abc",
			found:   true,
		},
		{
			name:    "parent missing",
			unknown: "start",
			args:    []string{"start", "abc", "--follow"},
			want:    "snabel session start abc --follow",
			found:   true,
		},
		{
			name:    "unknown word",
			unknown: "frobnicate",
			args:    []string{"frobnicate"},
			found:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := suggestCorrectCommand(tt.unknown, tt.args, rootCmd)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("suggestion = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"GIT_REMOTE=origin", "EMPTY=", "URL=http://x/?a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["GIT_REMOTE"] != "origin" || got["EMPTY"] != "" || got["URL"] != "http://x/?a=b" {
		t.Fatalf("unexpected assignments: %v", got)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
