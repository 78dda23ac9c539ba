package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewStepID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		wantErr error
	}{
		{"base:packages:git", nil},
		{"dotfiles:link:.config/nvim", nil},
		{"app:run:npm@10", nil},
		{"  trimmed:id  ", nil},
		{"", ErrEmptyStepID},
		{"   ", ErrEmptyStepID},
		{"has space:x", ErrInvalidStepID},
		{"trailing:", ErrInvalidStepID},
		{":leading", ErrInvalidStepID},
		{"double::colon", ErrInvalidStepID},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			id, err := NewStepID(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.False(t, id.IsZero())
		})
	}
}

func TestJoinStepID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		segments []string
		want     string
	}{
		{"plain", []string{"base", "packages", "git"}, `^base:packages:git$`},
		{"home path", []string{"vim", "link", "~/.vimrc"}, `^vim:link:_/\.vimrc@[0-9a-f]{8}$`},
		{"absolute path", []string{"etc", "write", "/etc/hosts"}, `^etc:write:etc/hosts$`},
		{"spaces and colons", []string{"my module", "run", "echo a:b"}, `^my_module@[0-9a-f]{8}:run:echo_a_b@[0-9a-f]{8}$`},
		{"leading dash", []string{"m", "pkg", "-x"}, `^m:pkg:x@[0-9a-f]{8}$`},
		{"empty segment dropped", []string{"m", "", "x"}, `^m:x$`},
		{"root dropped", []string{"m", "/", "x"}, `^m:x$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := JoinStepID(tt.segments...)
			require.NoError(t, err)
			assert.Regexp(t, tt.want, id.String())
		})
	}
}

func TestSanitizeSegment_DistinctInputsStayDistinct(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"/home/u/notes/é.md", "/home/u/notes/ü.md"},
		{"my file", "my_file"},
		{"a b", "a  b"},
		{"-x", "x"},
		{"//srv", "/srv"},
	}
	for _, p := range pairs {
		assert.NotEqual(t, SanitizeSegment(p[0]), SanitizeSegment(p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestSanitizeSegment_Injective(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		// Segments of one kind are all absolute paths, so both share the
		// leading slash.
		a := "/" + rapid.String().Draw(t, "a")
		b := "/" + rapid.String().Draw(t, "b")
		if a == b {
			t.Skip("equal inputs")
		}
		sa, sb := SanitizeSegment(a), SanitizeSegment(b)
		if sa == "" || sb == "" {
			t.Skip("empty segment")
		}
		if sa == sb {
			t.Fatalf("%q and %q both sanitize to %q", a, b, sa)
		}
		_, err := NewStepID("m:k:" + sa)
		if err != nil {
			t.Fatalf("sanitized %q is not a valid segment: %v", sa, err)
		}
	})
}

func TestStepID_Module(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "base", MustNewStepID("base:packages:git").Module())
	assert.Equal(t, "solo", MustNewStepID("solo").Module())
	assert.True(t, MustNewStepID("a:b").Equals(MustNewStepID("a:b")))
}

func TestMustNewStepID_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustNewStepID("bad id") })
}
