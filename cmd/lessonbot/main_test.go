package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/m3rciful/lessonbot/core/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != buildinfo.String() {
		t.Fatalf("output = %q", out.String())
	}
}

func TestAdminGrantRejectsBadID(t *testing.T) {
	root := buildRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"admin", "grant", "abc"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid user id") {
		t.Fatalf("err = %v", err)
	}
}

func TestCommandTree(t *testing.T) {
	root := buildRootCmd()
	for _, path := range [][]string{{"run"}, {"migrate"}, {"admin", "grant"}, {"admin", "revoke"}, {"version"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not found: %v", path, err)
		}
	}
}
