package integrate

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/formats"
	"github.com/pkgforge/soar/pkg/model"
)

type layout struct {
	root, packages, install string
	integ                   *Integrator
}

func newLayout(t *testing.T) layout {
	t.Helper()
	root := t.TempDir()
	l := layout{
		root:     root,
		packages: filepath.Join(root, "packages"),
		install:  filepath.Join(root, "packages", "tool-abc"),
	}
	l.integ = &Integrator{
		BinDir:     filepath.Join(root, "bin"),
		DesktopDir: filepath.Join(root, "applications"),
		IconsDir:   filepath.Join(root, "icons"),
		Managed:    []string{l.packages},
	}
	require.NoError(t, os.MkdirAll(l.install, 0o755))
	return l
}

func writeFile(t *testing.T, path string, data []byte, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, mode))
}

func readLink(t *testing.T, path string) string {
	t.Helper()
	target, err := os.Readlink(path)
	require.NoError(t, err)
	return target
}

func TestLinkBinaries_Provides(t *testing.T) {
	l := newLayout(t)
	writeFile(t, filepath.Join(l.install, "nvim"), []byte("x"), 0o644)
	writeFile(t, filepath.Join(l.install, "busybox"), []byte("x"), 0o755)

	provides := []model.Provide{
		model.ParseProvide("nvim==vim"),
		model.ParseProvide("busybox:sh"),
		model.ParseProvide("missing"),
	}
	created, err := l.integ.LinkBinaries(l.install, "neovim", provides)
	require.NoError(t, err)
	sort.Strings(created)
	bin := l.integ.BinDir
	assert.Equal(t, []string{filepath.Join(bin, "nvim"), filepath.Join(bin, "sh"), filepath.Join(bin, "vim")}, created)
	assert.Equal(t, filepath.Join(l.install, "nvim"), readLink(t, filepath.Join(bin, "vim")))
	assert.Equal(t, filepath.Join(l.install, "busybox"), readLink(t, filepath.Join(bin, "sh")))

	info, err := os.Stat(filepath.Join(l.install, "nvim"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111, "linked binaries become executable")
}

func TestLinkBinaries_SkipsForeignFiles(t *testing.T) {
	var logs bytes.Buffer
	logger.SetTestOutput(&logs)
	logger.InitLogger("info", logger.FormatText)
	t.Cleanup(logger.UnsetTestOutput)

	l := newLayout(t)
	writeFile(t, filepath.Join(l.install, "tool"), []byte("x"), 0o755)
	foreign := filepath.Join(l.integ.BinDir, "tool")
	writeFile(t, foreign, []byte("someone else's"), 0o755)

	created, err := l.integ.LinkBinaries(l.install, "tool", []model.Provide{{Name: "tool"}})
	require.NoError(t, err)
	assert.Empty(t, created)
	data, err := os.ReadFile(foreign)
	require.NoError(t, err)
	assert.Equal(t, "someone else's", string(data))
	assert.Contains(t, logs.String(), "not replacing")

	other := filepath.Join(l.root, "elsewhere", "tool")
	writeFile(t, other, []byte("x"), 0o755)
	require.NoError(t, os.Remove(foreign))
	require.NoError(t, os.Symlink(other, foreign))
	created, err = l.integ.LinkBinaries(l.install, "tool", []model.Provide{{Name: "tool"}})
	require.NoError(t, err)
	assert.Empty(t, created, "symlinks outside the managed roots are foreign too")

	require.NoError(t, os.Remove(foreign))
	require.NoError(t, os.Symlink(filepath.Join(l.packages, "old-version", "tool"), foreign))
	created, err = l.integ.LinkBinaries(l.install, "tool", []model.Provide{{Name: "tool"}})
	require.NoError(t, err)
	assert.Equal(t, []string{foreign}, created, "managed symlinks are replaced")
}

func TestLinkBinaries_DiscoversExecutables(t *testing.T) {
	t.Run("top level", func(t *testing.T) {
		l := newLayout(t)
		writeFile(t, filepath.Join(l.install, "a"), []byte("x"), 0o755)
		writeFile(t, filepath.Join(l.install, "b"), []byte{0x7f, 'E', 'L', 'F'}, 0o644)
		writeFile(t, filepath.Join(l.install, "README"), []byte("x"), 0o644)
		writeFile(t, filepath.Join(l.install, ".soar-install"), []byte("{}"), 0o755)

		created, err := l.integ.LinkBinaries(l.install, "tool", nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{filepath.Join(l.integ.BinDir, "a"), filepath.Join(l.integ.BinDir, "b")}, created)
	})

	t.Run("bin fallback", func(t *testing.T) {
		l := newLayout(t)
		writeFile(t, filepath.Join(l.install, "usr", "bin", "tool"), []byte("x"), 0o755)
		created, err := l.integ.LinkBinaries(l.install, "tool", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(l.integ.BinDir, "tool")}, created)
	})

	t.Run("SOAR_SYMS", func(t *testing.T) {
		l := newLayout(t)
		writeFile(t, filepath.Join(l.install, "main"), []byte("x"), 0o755)
		writeFile(t, filepath.Join(l.install, SymsDir, "helper"), []byte("x"), 0o644)
		created, err := l.integ.LinkBinaries(l.install, "tool", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(l.integ.BinDir, "helper")}, created)
	})
}

func TestRewriteDesktop(t *testing.T) {
	in := "[Desktop Entry]\nName=Firefox\nExec=firefox %u\nTryExec={{pkg_path}} --safe\nIcon=firefox\n"
	got := RewriteDesktop(in, "firefox", "/bin", "firefox")
	assert.Equal(t, "[Desktop Entry]\nName=Firefox\nExec=/bin/firefox\nTryExec=/bin/firefox --safe\nIcon=firefox-soar\n", got)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	writeFile(t, path, buf.Bytes(), 0o644)
}

func TestLinkDesktopAssets(t *testing.T) {
	l := newLayout(t)
	writeFile(t, filepath.Join(l.install, "tool.desktop"), []byte("[Desktop Entry]\nExec=tool\nIcon=tool\n"), 0o644)
	writePNG(t, filepath.Join(l.install, "tool.png"), 100, 100)
	writeFile(t, filepath.Join(l.install, "share", "tool.svg"), []byte("<svg/>"), 0o644)

	require.NoError(t, l.integ.LinkDesktopAssets(l.install, "tool"))

	desktop := filepath.Join(l.integ.DesktopDir, "tool-soar.desktop")
	assert.Equal(t, filepath.Join(l.install, "tool.desktop"), readLink(t, desktop))
	content, err := os.ReadFile(desktop)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Exec="+filepath.Join(l.integ.BinDir, "tool"))

	png96 := filepath.Join(l.integ.IconsDir, "96x96", "apps", "tool-soar.png")
	assert.Equal(t, filepath.Join(l.install, "tool.png"), readLink(t, png96))
	f, err := os.Open(png96)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(f)
	_ = f.Close()
	require.NoError(t, err)
	assert.Equal(t, 96, cfg.Width, "icon rescaled to the nearest standard size")

	assert.FileExists(t, filepath.Join(l.integ.IconsDir, "128x128", "apps", "tool-soar.svg"))

	require.NoError(t, l.integ.LinkDesktopAssets(l.install, "tool"), "relinking is idempotent")

	removed, err := l.integ.RemoveLinksInto(l.install)
	require.NoError(t, err)
	assert.Len(t, removed, 3)
	assert.NoFileExists(t, desktop)
}

func TestNearestIconSize(t *testing.T) {
	assert.Equal(t, 16, NearestIconSize(1, 1))
	assert.Equal(t, 256, NearestIconSize(256, 256))
	assert.Equal(t, 512, NearestIconSize(4000, 4000))
	assert.Equal(t, 48, NearestIconSize(50, 46))
}

func TestRemoveLinksInto_KeepsOthers(t *testing.T) {
	l := newLayout(t)
	writeFile(t, filepath.Join(l.install, "tool"), []byte("x"), 0o755)
	otherInstall := filepath.Join(l.packages, "other-xyz")
	writeFile(t, filepath.Join(otherInstall, "other"), []byte("x"), 0o755)

	_, err := l.integ.LinkBinaries(l.install, "tool", nil)
	require.NoError(t, err)
	_, err = l.integ.LinkBinaries(otherInstall, "other", nil)
	require.NoError(t, err)

	removed, err := l.integ.RemoveLinksInto(l.install)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(l.integ.BinDir, "tool")}, removed)
	assert.FileExists(t, filepath.Join(l.integ.BinDir, "other"))

	missing := &Integrator{BinDir: filepath.Join(l.root, "nope"), IconsDir: filepath.Join(l.root, "nope2")}
	removed, err = missing.RemoveLinksInto(l.install)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestRemoveBrokenLinks(t *testing.T) {
	l := newLayout(t)
	writeFile(t, filepath.Join(l.install, "tool"), []byte("x"), 0o755)
	goneInstall := filepath.Join(l.packages, "gone-123")
	writeFile(t, filepath.Join(goneInstall, "gone"), []byte("x"), 0o755)
	writePNG(t, filepath.Join(goneInstall, "gone.png"), 32, 32)

	_, err := l.integ.LinkBinaries(l.install, "tool", nil)
	require.NoError(t, err)
	_, err = l.integ.LinkBinaries(goneInstall, "gone", nil)
	require.NoError(t, err)
	icon, err := l.integ.LinkIcon(filepath.Join(goneInstall, "gone.png"))
	require.NoError(t, err)

	foreign := filepath.Join(l.integ.BinDir, "foreign")
	require.NoError(t, os.Symlink(filepath.Join(l.root, "elsewhere", "foreign"), foreign))
	require.NoError(t, os.RemoveAll(goneInstall))

	removed, err := l.integ.RemoveBrokenLinks()
	require.NoError(t, err)
	sort.Strings(removed)
	assert.Equal(t, []string{filepath.Join(l.integ.BinDir, "gone"), icon}, removed)
	assert.FileExists(t, filepath.Join(l.integ.BinDir, "tool"))
	_, err = os.Lstat(foreign)
	assert.NoError(t, err, "dangling links outside the managed roots are left alone")
}

func TestPortable(t *testing.T) {
	l := newLayout(t)
	bin := filepath.Join(l.install, "tool")
	links := formats.For(formats.KindAppImage, nil).PortableDirs(bin)
	base := filepath.Join(l.root, "portable")

	dirs := &model.PortableDirs{Home: base, Config: base}
	require.NoError(t, l.integ.LinkPortable(links, dirs, "tool"))
	assert.Equal(t, filepath.Join(base, "tool.home"), readLink(t, bin+".home"))
	assert.Equal(t, filepath.Join(base, "tool.config"), readLink(t, bin+".config"))
	assert.NoFileExists(t, bin+".share")

	writeFile(t, filepath.Join(base, "tool.home", "state"), []byte("keep"), 0o644)
	require.NoError(t, l.integ.LinkPortable(links, &model.PortableDirs{Path: base}, "tool"))
	assert.FileExists(t, filepath.Join(bin+".home", "state"), "existing portable data survives relinking")
	assert.Equal(t, filepath.Join(base, "tool.cache"), readLink(t, bin+".cache"))
}

func TestResolvePortable(t *testing.T) {
	empty, custom := "", "/data/home"
	dirs, err := ResolvePortable(PortableFlags{Home: &custom, Cache: &empty}, "/base", "tool", "id")
	require.NoError(t, err)
	assert.Equal(t, &model.PortableDirs{Home: "/data/home", Cache: "/base/tool-id"}, dirs)

	dirs, err = ResolvePortable(PortableFlags{}, "/base", "tool", "id")
	require.NoError(t, err)
	assert.Nil(t, dirs)
}
