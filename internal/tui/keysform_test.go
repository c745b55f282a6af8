package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysFormCreation(t *testing.T) {
	form := NewKeysForm("", "", "")
	assert.NotNil(t, form.Form())

	form = NewKeysForm("app-1", "ghp_abc", "")
	assert.Equal(t, "app-1", form.App)
	assert.Equal(t, "ghp_abc", form.GitHub)
}

func TestValidateGitHubKey(t *testing.T) {
	assert.NoError(t, ValidateGitHubKey(""))
	assert.NoError(t, ValidateGitHubKey("ghp_abc"))
	assert.NoError(t, ValidateGitHubKey(strings.Repeat("a1", 20)))
	assert.Error(t, ValidateGitHubKey("token"))
}

func TestValidateLLMKey(t *testing.T) {
	assert.NoError(t, ValidateLLMKey("  "))
	assert.NoError(t, ValidateLLMKey("sk-0123456789abcdefghij"))
	assert.Error(t, ValidateLLMKey("sk-short"))
}

func TestRequired(t *testing.T) {
	check := required("app uuid")
	assert.EqualError(t, check(" "), "app uuid is required")
	assert.NoError(t, check("abc"))
}
