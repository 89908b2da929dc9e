package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const message = `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">` +
	`<s:Body><ex:Order xmlns:ex="urn:example:orders"><ex:Item>42</ex:Item></ex:Order></s:Body></s:Envelope>`

const cliConfig = `
outbound:
  actions: [UsernameToken, Encrypt]
  user: bob
  usernameToken:
    deriveKey: true
    iterations: 1000
  derivedKeys: true
inbound:
  actions: [UsernameToken, Encrypt]
  policy: %POLICY%
passwords:
  bob: security
metrics:
  enabled: true
`

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSecureAndVerify(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	policyPath := write("policy.yaml", "encryptedParts:\n  body: true\n")
	cfg := write("wssec.yaml", strings.ReplaceAll(cliConfig, "%POLICY%", policyPath))
	in := write("msg.xml", message)
	secured := filepath.Join(dir, "secured.xml")
	plain := filepath.Join(dir, "plain.xml")

	_, _, err := run(t, "secure", "--config", cfg, "--in", in, "--out", secured)
	require.NoError(t, err)
	data, err := os.ReadFile(secured)
	require.NoError(t, err)
	assert.Contains(t, string(data), "wsse:Security")
	assert.NotContains(t, string(data), "<ex:Item>")

	_, stderr, err := run(t, "verify", "--config", cfg, "--in", secured, "--out", plain)
	require.NoError(t, err)
	assert.Contains(t, stderr, "principal: bob")
	assert.Contains(t, stderr, "verdict: pass")
	data, err = os.ReadFile(plain)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<ex:Item>42</ex:Item>")

	strict := write("strict.yaml", "signedParts:\n  body: true\n")
	cfg = write("strict-wssec.yaml", strings.ReplaceAll(cliConfig, "%POLICY%", strict))
	_, stderr, err = run(t, "verify", "--config", cfg, "--in", secured, "--out", "-")
	assert.Error(t, err)
	assert.Contains(t, stderr, "verdict: fail")
}

func TestVerifyRequiresSecurityHeader(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "wssec.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("inbound:\n  actions: [UsernameToken]\n"), 0o600))
	in := filepath.Join(dir, "msg.xml")
	require.NoError(t, os.WriteFile(in, []byte(message), 0o600))

	_, _, err := run(t, "verify", "--config", cfg, "--in", in, "--out", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidSecurity")
}
