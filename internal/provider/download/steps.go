// Package download fetches files over HTTP as steps.
package download

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/dhd-cli/dhd/internal/domain/compiler"
	"github.com/dhd-cli/dhd/internal/ports"
	"github.com/dhd-cli/dhd/internal/provider/stepmeta"
	"github.com/dhd-cli/dhd/internal/validation"
)

// Supported checksum algorithms.
const (
	SHA256  = "sha256"
	BLAKE2b = "blake2b"
)

// ErrChecksumMismatch is returned when downloaded content does not match.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// File describes a download.
type File struct {
	URL    string
	Target string
	// Checksum is a hex digest, optionally prefixed with "<algo>:".
	Checksum     string
	ChecksumType string
	Mode         os.FileMode
}

// Step downloads a file when the target is missing or fails verification.
type Step struct {
	stepmeta.Meta
	file       File
	algo       string
	digest     string
	downloader ports.Downloader
	fs         ports.FileSystem
}

// NewStep creates a download step.
func NewStep(module string, f File, downloader ports.Downloader, fs ports.FileSystem) (*Step, error) {
	if err := validation.ValidateURL(f.URL); err != nil {
		return nil, err
	}
	algo, digest, err := parseChecksum(f.Checksum, f.ChecksumType)
	if err != nil {
		return nil, err
	}
	meta, err := stepmeta.New(module, "download", f.Target)
	if err != nil {
		return nil, err
	}
	return &Step{Meta: meta, file: f, algo: algo, digest: digest, downloader: downloader, fs: fs}, nil
}

// Check reports whether the file must be fetched.
func (s *Step) Check(_ compiler.RunContext) (compiler.StepStatus, error) {
	if !s.fs.Exists(s.file.Target) {
		return compiler.StatusNeedsApply, nil
	}
	if s.digest == "" {
		return compiler.StatusSatisfied, nil
	}
	content, err := s.fs.ReadFile(s.file.Target)
	if err != nil {
		return compiler.StatusUnknown, err
	}
	return compiler.StatusFor(s.verify(content) != nil), nil
}

// Apply downloads, verifies and writes the file.
func (s *Step) Apply(ctx compiler.RunContext) error {
	var buf bytes.Buffer
	if err := s.downloader.Fetch(ctx.Context(), s.file.URL, &buf); err != nil {
		return fmt.Errorf("download %s: %w", s.file.URL, err)
	}
	if err := s.verify(buf.Bytes()); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.file.Target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", s.file.Target, err)
	}
	mode := s.file.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := s.fs.WriteFile(s.file.Target, buf.Bytes(), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.file.Target, err)
	}
	return nil
}

// Describe returns a one-line summary.
func (s *Step) Describe() string {
	return fmt.Sprintf("download %s to %s", s.file.URL, s.file.Target)
}

func (s *Step) verify(content []byte) error {
	if s.digest == "" {
		return nil
	}
	got := Digest(s.algo, content)
	if got != s.digest {
		return fmt.Errorf("%w for %s: expected %s:%s, got %s:%s", ErrChecksumMismatch, s.file.URL, s.algo, s.digest, s.algo, got)
	}
	return nil
}

// Digest returns the lowercase hex digest of content.
func Digest(algo string, content []byte) string {
	var h hash.Hash
	switch algo {
	case BLAKE2b:
		// New256 only fails for keys longer than 64 bytes.
		h, _ = blake2b.New256(nil)
	default:
		h = sha256.New()
	}
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func parseChecksum(checksum, algo string) (string, string, error) {
	checksum = strings.TrimSpace(checksum)
	if prefix, rest, ok := strings.Cut(checksum, ":"); ok {
		if algo != "" && !strings.EqualFold(algo, prefix) {
			return "", "", fmt.Errorf("checksum type %q conflicts with prefix %q", algo, prefix)
		}
		algo, checksum = prefix, rest
	}
	algo = strings.ToLower(algo)
	if algo == "" {
		algo = SHA256
	}
	if algo != SHA256 && algo != BLAKE2b {
		return "", "", fmt.Errorf("unsupported checksum type %q", algo)
	}
	if checksum == "" {
		return algo, "", nil
	}
	if _, err := hex.DecodeString(checksum); err != nil || len(checksum) != 64 {
		return "", "", fmt.Errorf("invalid %s checksum %q", algo, checksum)
	}
	return algo, strings.ToLower(checksum), nil
}
