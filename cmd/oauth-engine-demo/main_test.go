package main

import (
	"bytes"
	"strings"
	"testing"
)

func executeRootCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeRootCommand(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if stdout != "oauth-engine-demo "+version+"\n" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestDemoRuns(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"default", nil},
		{"bridged", []string{"--bridged"}},
		{"plain optional", []string{"--pkce", "optional", "--pkce-method", "plain"}},
		{"no pkce", []string{"--pkce", "off", "--scope", "read write"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeRootCommand(t, append(tt.args, "--log-level", "error")...)
			if err != nil {
				t.Fatalf("demo failed: %v", err)
			}
			for _, want := range []string{"code issued", "access_token: issued", "bearer token accepted", "token pair rotated", "second exchange rejected"} {
				if !strings.Contains(stdout, want) {
					t.Errorf("output missing %q:\n%s", want, stdout)
				}
			}
		})
	}
}

func TestDemoMetrics(t *testing.T) {
	stdout, _, err := executeRootCommand(t, "--metrics", "--log-level", "error")
	if err != nil {
		t.Fatalf("demo failed: %v", err)
	}
	if !strings.Contains(stdout, "oauth_code_issued_total") {
		t.Errorf("metrics output missing oauth_code_issued_total:\n%s", stdout)
	}
	if strings.Contains(stdout, "oauth.code.issued") {
		t.Errorf("metrics output uses dotted names:\n%s", stdout)
	}
}

func TestDemoEnvironment(t *testing.T) {
	t.Setenv("OAUTH_ENGINE_PKCE_METHOD", "plain")

	stdout, _, err := executeRootCommand(t, "--log-level", "error")
	if err != nil {
		t.Fatalf("demo failed: %v", err)
	}
	if !strings.Contains(stdout, "method plain") {
		t.Errorf("environment override ignored:\n%s", stdout)
	}
}

func TestDemoInvalidFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--pkce", "sometimes"},
		{"--pkce-method", "S512"},
		{"--scope", `"quoted"`},
		{"--log-level", "loud"},
	} {
		if _, _, err := executeRootCommand(t, args...); err == nil {
			t.Errorf("args %v accepted", args)
		}
	}
}
