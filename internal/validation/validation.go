// Package validation checks values that end up on a command line or in a
// configuration file before a step hands them to an external tool.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Common validation errors.
var (
	ErrEmptyInput         = errors.New("input cannot be empty")
	ErrInvalidPackageName = errors.New("invalid package name")
	ErrInvalidExtensionID = errors.New("invalid extension id")
	ErrInvalidPath        = errors.New("invalid path")
	ErrCommandInjection   = errors.New("potential command injection detected")
	ErrNewlineInjection   = errors.New("newline injection detected")
	ErrInvalidGitConfig   = errors.New("invalid git config")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrInvalidUnitName    = errors.New("invalid systemd unit name")
	ErrInvalidUserName    = errors.New("invalid user or group name")
	ErrInvalidDconfPath   = errors.New("invalid dconf path")
)

var (
	// Examples: "git", "node-lts", "python3.11", "g++"
	packageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

	// Examples: "golang.go", "ms-python.python", "dash-to-dock@micxgx.gmail.com"
	extensionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._@-]*$`)

	// section[.subsection].name, e.g. "user.email", "url.git@github.com:.insteadof"
	gitConfigKeyRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*(\..+)?\.[a-zA-Z][a-zA-Z0-9-]*$`)

	// Examples: "docker.service", "getty@tty1.service", "ssh-agent.socket"
	unitNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9:_.@-]*$`)

	// POSIX portable names plus the trailing "$" machine accounts use.
	userNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*\$?$`)

	// Normalized dconf directories: "/org/gnome/desktop/interface/"
	dconfPathRegex = regexp.MustCompile(`^/([a-zA-Z0-9_.-]+/)*$`)

	controlCharRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)

	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\"}
)

// ValidatePackageName validates a package name passed to a package manager.
func ValidatePackageName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 256 {
		return fmt.Errorf("%w: name too long (max 256 characters)", ErrInvalidPackageName)
	}
	if !packageNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidPackageName, name)
	}
	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}
	return nil
}

// ValidateExtensionID validates an editor or desktop extension identifier.
func ValidateExtensionID(id string) error {
	if id == "" {
		return ErrEmptyInput
	}
	if !extensionIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidExtensionID, id)
	}
	return nil
}

// ValidatePath rejects empty paths and paths with control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyInput
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}
	if strings.ContainsAny(path, "\n\r") {
		return fmt.Errorf("%w: %q contains a newline", ErrInvalidPath, path)
	}
	return nil
}

// ValidateGitConfigKey validates a dotted git configuration key.
func ValidateGitConfigKey(key string) error {
	if key == "" {
		return ErrEmptyInput
	}
	if !gitConfigKeyRegex.MatchString(key) || controlCharRegex.MatchString(key) {
		return fmt.Errorf("%w: bad key %q", ErrInvalidGitConfig, key)
	}
	return nil
}

// ValidateGitConfigValue rejects values that would inject extra config lines.
func ValidateGitConfigValue(value string) error {
	if strings.ContainsAny(value, "\n\r") {
		return fmt.Errorf("%w: git config value contains newlines", ErrNewlineInjection)
	}
	if controlCharRegex.MatchString(value) {
		return fmt.Errorf("%w: value contains control characters", ErrInvalidGitConfig)
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) error {
	if raw == "" {
		return ErrEmptyInput
	}
	if len(raw) > 2048 {
		return fmt.Errorf("%w: URL too long", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q must be an http or https URL", ErrInvalidURL, raw)
	}
	return nil
}

// ValidateUnitName validates a systemd unit name passed to systemctl.
func ValidateUnitName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 255 || !unitNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidUnitName, name)
	}
	return nil
}

// ValidateUserName validates a user or group name passed to usermod.
func ValidateUserName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 32 || !userNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidUserName, name)
	}
	return nil
}

// ValidateDconfPath validates a normalized dconf directory path.
func ValidateDconfPath(path string) error {
	if path == "" {
		return ErrEmptyInput
	}
	if !dconfPathRegex.MatchString(path) {
		return fmt.Errorf("%w: %q", ErrInvalidDconfPath, path)
	}
	return nil
}

func containsShellMeta(s string) bool {
	for _, char := range shellMetaChars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}
