package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autogippity/pkg/config"
)

func runSecrets(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"secrets", "--project-dir", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSecretsCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvPassword, "hunter2")
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })

	out, err := runSecrets(t, dir, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No secrets stored")

	out, err = runSecrets(t, dir, "", "set", config.EnvOpenAIAPIKey, "sk-test")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved secret "+config.EnvOpenAIAPIKey)
	assert.True(t, config.SecretsFileExists(dir))

	_, err = runSecrets(t, dir, "g-key\n", "set", config.EnvGoogleAPIKey)
	require.NoError(t, err)

	out, err = runSecrets(t, dir, "", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{config.EnvGoogleAPIKey, config.EnvOpenAIAPIKey}, strings.Fields(out))

	// The file is what a run unlocks.
	config.SetDecryptedSecrets(nil)
	require.NoError(t, config.UnlockSecrets(dir, "hunter2"))
	key, err := config.GetSecret(config.EnvGoogleAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "g-key", key)

	out, err = runSecrets(t, dir, "", "delete", config.EnvOpenAIAPIKey)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret")

	secrets, err := config.DecryptSecretsFile(dir, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{config.EnvGoogleAPIKey: "g-key"}, secrets)

	_, err = runSecrets(t, dir, "", "delete", config.EnvOpenAIAPIKey)
	assert.ErrorContains(t, err, "not found")
}

func TestSecretsPasswordPrompt(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvPassword, "")
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })

	out, err := runSecrets(t, dir, "pw\nvalue\n", "set", "TOKEN")
	require.NoError(t, err)
	assert.Contains(t, out, "Secrets password:")
	assert.Contains(t, out, "Value for TOKEN:")

	secrets, err := config.DecryptSecretsFile(dir, "pw")
	require.NoError(t, err)
	assert.Equal(t, "value", secrets["TOKEN"])

	_, err = runSecrets(t, dir, "wrong\n", "list")
	assert.ErrorContains(t, err, "failed to unlock secrets")

	_, err = runSecrets(t, dir, "\n", "list")
	assert.ErrorContains(t, err, "password is required")
}
