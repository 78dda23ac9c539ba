package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePackageName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple", "git", nil},
		{"versioned", "python3.11", nil},
		{"plus", "g++", nil},
		{"empty", "", ErrEmptyInput},
		{"leading dash", "-rf", ErrInvalidPackageName},
		{"injection", "git;rm", ErrInvalidPackageName},
		{"space", "git curl", ErrInvalidPackageName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePackageName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateExtensionID(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateExtensionID("golang.go"))
	assert.NoError(t, ValidateExtensionID("dash-to-dock@micxgx.gmail.com"))
	assert.ErrorIs(t, ValidateExtensionID(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateExtensionID("--force"), ErrInvalidExtensionID)
}

func TestValidateGitConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key   string
		valid bool
	}{
		{"user.email", true},
		{"core.autocrlf", true},
		{"url.git@github.com:.insteadOf", true},
		{"user", false},
		{".email", false},
		{"user.", false},
		{"user.na\tme", false},
	}
	for _, tt := range tests {
		err := ValidateGitConfigKey(tt.key)
		if tt.valid {
			assert.NoError(t, err, tt.key)
		} else {
			assert.ErrorIs(t, err, ErrInvalidGitConfig, tt.key)
		}
	}

	assert.NoError(t, ValidateGitConfigValue("Jane Doe"))
	assert.ErrorIs(t, ValidateGitConfigValue("x\n[core]"), ErrNewlineInjection)
	assert.ErrorIs(t, ValidateGitConfigValue("x\x00"), ErrInvalidGitConfig)
}

func TestValidatePath(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePath("/home/u/.vimrc"))
	assert.ErrorIs(t, ValidatePath(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidatePath("/tmp/a\x00b"), ErrInvalidPath)
	assert.ErrorIs(t, ValidatePath("/tmp/a\nb"), ErrInvalidPath)
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateURL("https://example.com/tool.tar.gz"))
	assert.NoError(t, ValidateURL("http://127.0.0.1:8080/x"))
	assert.ErrorIs(t, ValidateURL(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateURL("ftp://example.com/x"), ErrInvalidURL)
	assert.ErrorIs(t, ValidateURL("/relative"), ErrInvalidURL)
}

func TestValidateUnitName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateUnitName("docker.service"))
	assert.NoError(t, ValidateUnitName("getty@tty1.service"))
	assert.NoError(t, ValidateUnitName("ssh-agent"))
	assert.ErrorIs(t, ValidateUnitName(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateUnitName("--now"), ErrInvalidUnitName)
	assert.ErrorIs(t, ValidateUnitName("a b.service"), ErrInvalidUnitName)
	assert.ErrorIs(t, ValidateUnitName("../evil.service"), ErrInvalidUnitName)
}

func TestValidateUserName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		valid bool
	}{
		{"alice", true},
		{"_apt", true},
		{"build-bot", true},
		{"host$", true},
		{"", false},
		{"-G", false},
		{"wheel,root", false},
		{"a b", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			err := ValidateUserName(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestValidateDconfPath(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateDconfPath("/"))
	assert.NoError(t, ValidateDconfPath("/org/gnome/desktop/interface/"))
	assert.ErrorIs(t, ValidateDconfPath(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateDconfPath("/org/gnome"), ErrInvalidDconfPath)
	assert.ErrorIs(t, ValidateDconfPath("/org//gnome/"), ErrInvalidDconfPath)
	assert.ErrorIs(t, ValidateDconfPath("/org/$(id)/"), ErrInvalidDconfPath)
}
