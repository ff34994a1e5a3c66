package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/soar/pkg/errors"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want Ref
	}{
		{"curl", Ref{Name: "curl"}},
		{"Curl#static", Ref{Name: "curl", PkgID: "static"}},
		{"curl:bincache", Ref{Name: "curl", Repo: "bincache"}},
		{"curl#static:bincache", Ref{Name: "curl", PkgID: "static", Repo: "bincache"}},
		{"curl@8.5.0", Ref{Name: "curl", Version: "8.5.0"}},
		{"curl#static@8.5.0:bincache", Ref{Name: "curl", PkgID: "static", Version: "8.5.0", Repo: "bincache"}},
		{"#static", Ref{PkgID: "static"}},
		{"curl#all", Ref{Name: "curl", PkgID: "all"}},
		{"Curl#Static@1.0-RC1:MyRepo", Ref{Name: "curl", PkgID: "static", Version: "1.0-RC1", Repo: "MyRepo"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			require.NoError(t, err)
			tt.want.Raw = tt.in
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "   ", "a/b", "#all", "a:b:c"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := ParseRef(bad)
			assert.ErrorIs(t, err, errors.ErrInvalidReference)
		})
	}
}

func TestRefString(t *testing.T) {
	ref, err := ParseRef("curl#static@1.0:bincache")
	require.NoError(t, err)
	assert.Equal(t, "curl#static@1.0:bincache", ref.String())
	assert.False(t, ref.AllVariants())
}

func TestParseProvide(t *testing.T) {
	tests := []struct {
		in    string
		want  Provide
		links []string
	}{
		{"busybox", Provide{Name: "busybox"}, []string{"busybox"}},
		{"nvim==vim", Provide{Name: "nvim", Target: "vim", Strategy: ProvideKeepBoth}, []string{"vim", "nvim"}},
		{"nvim=>vim", Provide{Name: "nvim", Target: "vim", Strategy: ProvideKeepTargetOnly}, []string{"vim"}},
		{"nvim:vi", Provide{Name: "nvim", Target: "vi", Strategy: ProvideAlias}, []string{"vi"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseProvide(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.links, got.LinkNames())
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestProvide_UnmarshalJSON(t *testing.T) {
	var provides []Provide
	require.NoError(t, json.Unmarshal([]byte(`["a", "b==c", {"name":"d","target":"e","strategy":"=>"}]`), &provides))
	assert.Equal(t, []Provide{
		{Name: "a"},
		{Name: "b", Target: "c", Strategy: ProvideKeepBoth},
		{Name: "d", Target: "e", Strategy: ProvideKeepTargetOnly},
	}, provides)

	encoded, err := json.Marshal(provides)
	require.NoError(t, err)
	var again []Provide
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Equal(t, provides, again)
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 1, CompareVersions("1.10.0", "1.9.0"))
	assert.Equal(t, -1, CompareVersions("v1.2", "1.3"))
	assert.Equal(t, 0, CompareVersions("2.0", "2.0.0"))
	assert.Equal(t, 1, CompareVersions("HEAD-b", "HEAD-a"), "non-semver falls back to string order")
}

func TestParseMaintainer(t *testing.T) {
	m := ParseMaintainer("Jane Doe (jane@example.org)")
	assert.Equal(t, Maintainer{Name: "Jane Doe", Contact: "jane@example.org"}, m)
	assert.Equal(t, "Jane Doe (jane@example.org)", m.String())
	assert.Equal(t, Maintainer{Name: "solo"}, ParseMaintainer("solo"))
}

func TestPortableDirs_IsZero(t *testing.T) {
	var nilDirs *PortableDirs
	assert.True(t, nilDirs.IsZero())
	assert.True(t, (&PortableDirs{}).IsZero())
	assert.False(t, (&PortableDirs{Home: "/x"}).IsZero())
}
