package repourl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issueradar/issueradar/internal/model"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Ref
	}{
		{
			name:  "github https git url",
			input: "https://github.com/pmndrs/jotai.git",
			want:  Ref{User: "pmndrs", Repo: "jotai", Provider: model.ProviderGitHub},
		},
		{
			name:  "github https repo url",
			input: "https://github.com/pmndrs/jotai",
			want:  Ref{User: "pmndrs", Repo: "jotai", Provider: model.ProviderGitHub},
		},
		{
			name:  "github ssh url",
			input: "git@github.com:pmndrs/jotai.git",
			want:  Ref{User: "pmndrs", Repo: "jotai", Provider: model.ProviderGitHub},
		},
		{
			name:  "gitlab https git url",
			input: "https://gitlab.com/inkscape/inkscape.git",
			want:  Ref{User: "inkscape", Repo: "inkscape", Provider: model.ProviderGitLab},
		},
		{
			name:  "gitlab https repo url",
			input: "https://gitlab.com/inkscape/inkscape",
			want:  Ref{User: "inkscape", Repo: "inkscape", Provider: model.ProviderGitLab},
		},
		{
			name:  "gitlab ssh url",
			input: "git@gitlab.com:inkscape/inkscape.git",
			want:  Ref{User: "inkscape", Repo: "inkscape", Provider: model.ProviderGitLab},
		},
		{
			name:  "surrounding whitespace",
			input: "  https://github.com/pmndrs/jotai \n",
			want:  Ref{User: "pmndrs", Repo: "jotai", Provider: model.ProviderGitHub},
		},
		{
			name:  "trailing slash",
			input: "https://github.com/pmndrs/jotai/",
			want:  Ref{User: "pmndrs", Repo: "jotai", Provider: model.ProviderGitHub},
		},
		{
			name:  "no scheme",
			input: "github.com/pmndrs/jotai",
			want:  Ref{User: "pmndrs", Repo: "jotai", Provider: model.ProviderGitHub},
		},
		{
			name:  "not a git url",
			input: "https://nextjs.org/docs/testing",
			want:  Unknown,
		},
		{
			name:  "git url too long",
			input: "https://github.com/vercel/platforms/tree/main",
			want:  Unknown,
		},
		{
			name:  "ssh url too long",
			input: "git@github.com:vercel/platforms/tree/main",
			want:  Unknown,
		},
		{
			name:  "http scheme is not stripped",
			input: "http://github.com/pmndrs/jotai",
			want:  Unknown,
		},
		{
			name:  "host only",
			input: "https://github.com/pmndrs",
			want:  Unknown,
		},
		{
			name:  "empty",
			input: "",
			want:  Unknown,
		},
		{
			name:  "blank",
			input: "   ",
			want:  Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestUnknownHasEmptyFields(t *testing.T) {
	t.Parallel()

	got := Parse("https://bitbucket.org/a/b")
	assert.Equal(t, model.ProviderUnknown, got.Provider)
	assert.Empty(t, got.User)
	assert.Empty(t, got.Repo)
	assert.False(t, got.Valid())
	assert.Equal(t, "UNKNOWN", got.String())
}

func TestRequire(t *testing.T) {
	t.Parallel()

	ref, err := Require("git@github.com:pmndrs/jotai.git")
	require.NoError(t, err)
	assert.Equal(t, "pmndrs/jotai", ref.FullName())
	assert.Equal(t, "GITHUB:pmndrs/jotai", ref.String())

	_, err = Require("https://nextjs.org/docs/testing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedURL))
}

func TestProjectDefaults(t *testing.T) {
	t.Parallel()

	ref := Parse("https://github.com/vercel/next.js")
	assert.Equal(t, "vercel/next.js", DefaultProjectName(ref))
	assert.Equal(t, "nextjs", DefaultSubdomain(ref))
}

func TestSanitizeSubdomain(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"my-project":  "my-project",
		"My Project!": "MyProject",
		"a/b_c.d":     "a/bcd",
		"":            "",
		"日本語-project": "-project",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeSubdomain(in), "input %q", in)
	}
}
