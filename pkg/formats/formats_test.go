package formats_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pkgforge/soar/pkg/archive"
	"github.com/pkgforge/soar/pkg/formats"
	"github.com/pkgforge/soar/pkg/formats/mocks"
	"github.com/pkgforge/soar/pkg/model"
)

func writePayload(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func elfWithMarker(marker ...byte) []byte {
	head := []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}
	head = append(head, marker...)
	for len(head) < 64 {
		head = append(head, 0)
	}
	return head
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	am := archive.NewManager()

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	writePayload(t, src, "tool", []byte("#!/bin/sh\n"))
	tarball := filepath.Join(dir, "tool.tar.gz")
	require.NoError(t, am.Create(ctx, src, tarball))

	tests := []struct {
		name string
		data []byte
		path string
		want formats.PackageKind
	}{
		{name: "elf", data: elfWithMarker(0, 0, 0, 0), want: formats.KindStatic},
		{name: "appimage", data: elfWithMarker('A', 'I', 2, 0), want: formats.KindAppImage},
		{name: "flatimage", data: elfWithMarker('F', 'I', 1, 0), want: formats.KindFlatImage},
		{name: "runimage", data: elfWithMarker('R', 'I', 2, 0), want: formats.KindRunImage},
		{name: "script", data: []byte("#!/bin/sh\necho hi\n"), want: formats.KindStatic},
		{name: "tiny", data: []byte("x"), want: formats.KindStatic},
		{name: "archive", path: tarball, want: formats.KindArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = writePayload(t, dir, tt.name, tt.data)
			}
			got, err := formats.Detect(ctx, path, am)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, formats.For(got, am).Name())
		})
	}

	_, err := formats.Detect(ctx, filepath.Join(dir, "missing"), am)
	assert.Error(t, err)

	assert.True(t, formats.IsELF(filepath.Join(dir, "elf")))
	assert.False(t, formats.IsELF(filepath.Join(dir, "script")))
}

func TestBinaryStage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	payload := writePayload(t, dir, "download.bin", elfWithMarker(0, 0, 0, 0))
	installDir := filepath.Join(dir, "packages", "rg-abc")

	kind := formats.For(formats.KindStatic, nil)
	require.NoError(t, kind.Stage(ctx, formats.StageRequest{Payload: payload, InstallDir: installDir, PkgName: "rg"}))

	info, err := os.Stat(formats.BinPath(installDir, "rg"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)
	assert.NoFileExists(t, payload)
}

func TestArchiveStage_HonoursFilter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	am := archive.NewManager()

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	writePayload(t, src, "tool", []byte("bin"))
	writePayload(t, src, "build.log", []byte("noise"))
	tarball := filepath.Join(dir, "tool.tar.gz")
	require.NoError(t, am.Create(ctx, src, tarball))

	filter, err := archive.NewFilter([]string{"!*.log"})
	require.NoError(t, err)
	installDir := filepath.Join(dir, "install")
	kind := formats.For(formats.KindArchive, am)
	require.NoError(t, kind.Stage(ctx, formats.StageRequest{Payload: tarball, InstallDir: installDir, PkgName: "tool", Filter: filter}))

	assert.FileExists(t, filepath.Join(installDir, "tool"))
	assert.NoFileExists(t, filepath.Join(installDir, "build.log"))
	assert.NoFileExists(t, tarball)
}

func TestPortableDirs(t *testing.T) {
	app := formats.For(formats.KindAppImage, nil).PortableDirs("/p/firefox/firefox")
	require.Len(t, app, 4)
	assert.Equal(t, formats.PortableLink{Kind: formats.PortableHome, Link: "/p/firefox/firefox.home"}, app[0])
	assert.Equal(t, "/p/firefox/firefox.cache", app[3].Link)

	flat := formats.For(formats.KindFlatImage, nil).PortableDirs("/p/gimp/gimp")
	assert.Equal(t, []formats.PortableLink{{Kind: formats.PortableConfig, Link: "/p/gimp/.gimp.config"}}, flat)

	arc := formats.For(formats.KindArchive, nil).PortableDirs("/p/node/node")
	require.Len(t, arc, 4)
	assert.Equal(t, formats.PortableLink{Kind: formats.PortableHome, Link: "/p/node/.node.home"}, arc[0])
	assert.Equal(t, formats.PortableLink{Kind: formats.PortableCache, Link: "/p/node/.node.cache"}, arc[3])

	assert.Empty(t, formats.For(formats.KindStatic, nil).PortableDirs("/p/rg/rg"))
}

func TestIntegrate(t *testing.T) {
	ctx := context.Background()
	provides := []model.Provide{{Name: "firefox"}}
	portable := &model.PortableDirs{Home: "/portable"}

	t.Run("appimage with desktop and portable dirs", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		integ := mocks.NewMockIntegrator(ctrl)
		kind := formats.For(formats.KindAppImage, nil)

		gomock.InOrder(
			integ.EXPECT().LinkBinaries("/p/ff", "firefox", provides).Return([]string{"/bin/firefox"}, nil),
			integ.EXPECT().LinkDesktopAssets("/p/ff", "firefox").Return(nil),
			integ.EXPECT().LinkPortable(kind.PortableDirs("/p/ff/firefox"), portable, "firefox").Return(nil),
		)
		require.NoError(t, kind.Integrate(ctx, formats.IntegrateRequest{
			InstallDir: "/p/ff", BinPath: "/p/ff/firefox", PkgName: "firefox",
			Provides: provides, Desktop: true, Portable: portable, Integrator: integ,
		}))
	})

	t.Run("archive links portable dirs", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		integ := mocks.NewMockIntegrator(ctrl)
		kind := formats.For(formats.KindArchive, nil)

		gomock.InOrder(
			integ.EXPECT().LinkBinaries("/p/node", "node", nil).Return(nil, nil),
			integ.EXPECT().LinkPortable(kind.PortableDirs("/p/node/node"), portable, "node").Return(nil),
		)
		require.NoError(t, kind.Integrate(ctx, formats.IntegrateRequest{
			InstallDir: "/p/node", BinPath: "/p/node/node", PkgName: "node", Portable: portable, Integrator: integ,
		}))
	})

	t.Run("static binary skips desktop and portable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		integ := mocks.NewMockIntegrator(ctrl)
		integ.EXPECT().LinkBinaries("/p/rg", "rg", nil).Return(nil, nil)

		kind := formats.For(formats.KindStatic, nil)
		require.NoError(t, kind.Integrate(ctx, formats.IntegrateRequest{
			InstallDir: "/p/rg", BinPath: "/p/rg/rg", PkgName: "rg", Portable: portable, Integrator: integ,
		}))
	})

	t.Run("link failure stops integration", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		integ := mocks.NewMockIntegrator(ctrl)
		integ.EXPECT().LinkBinaries(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, os.ErrPermission)

		kind := formats.For(formats.KindAppImage, nil)
		err := kind.Integrate(ctx, formats.IntegrateRequest{
			InstallDir: "/p/ff", BinPath: "/p/ff/firefox", PkgName: "firefox", Desktop: true, Integrator: integ,
		})
		assert.ErrorIs(t, err, os.ErrPermission)
	})
}
