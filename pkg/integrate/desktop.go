package integrate

import (
	"bytes"
	stderrors "errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
)

// LinkSuffix is appended to desktop and icon names soar links into XDG dirs.
const LinkSuffix = "-soar"

// IconSizes are the hicolor sizes icons are normalised to.
var IconSizes = []int{16, 24, 32, 48, 64, 72, 80, 96, 128, 192, 256, 512}

// svgIconSize is the directory svg icons are filed under.
const svgIconSize = 128

var desktopKey = regexp.MustCompile(`(?m)^(Icon|Exec|TryExec)=(.*)$`)

// LinkDesktopAssets links every .desktop file and png/svg icon found in
// installDir into the XDG directories.
func (i *Integrator) LinkDesktopAssets(installDir, pkgName string) error {
	return filepath.WalkDir(installDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".desktop":
			_, err = i.LinkDesktop(path, pkgName)
		case ".png", ".svg":
			_, err = i.LinkIcon(path)
		}
		return err
	})
}

// RewriteDesktop points Icon at the -soar icon name and Exec/TryExec at the
// package's link in binDir. A {{pkg_path}} placeholder is substituted in
// place; otherwise the value is replaced.
func RewriteDesktop(content, stem, binDir, pkgName string) string {
	exec := filepath.Join(binDir, pkgName)
	return desktopKey.ReplaceAllStringFunc(content, func(line string) string {
		m := desktopKey.FindStringSubmatch(line)
		key, value := m[1], m[2]
		if key == "Icon" {
			return "Icon=" + stem + LinkSuffix
		}
		if strings.Contains(value, "{{pkg_path}}") {
			return key + "=" + strings.ReplaceAll(value, "{{pkg_path}}", exec)
		}
		return key + "=" + exec
	})
}

// LinkDesktop rewrites the desktop file in place and links it as
// <DesktopDir>/<stem>-soar.desktop.
func (i *Integrator) LinkDesktop(path, pkgName string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Filesystem(err, "read %s", path)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rewritten := RewriteDesktop(string(content), stem, i.BinDir, pkgName)
	if err := fsutil.WriteFileAtomic(path, []byte(rewritten), fsutil.FileModeDefault); err != nil {
		return "", errors.Filesystem(err, "write %s", path)
	}
	link := filepath.Join(i.DesktopDir, stem+LinkSuffix+".desktop")
	return link, i.replace(path, link)
}

// LinkIcon links an icon as <IconsDir>/<W>x<H>/apps/<stem>-soar.<ext>.
// Raster icons whose size is not a standard hicolor size are rescaled in
// place to the nearest one first.
func (i *Integrator) LinkIcon(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	w, h := svgIconSize, svgIconSize
	if ext != "svg" {
		var err error
		w, h, err = normalizeIcon(path)
		if err != nil {
			logger.Warn("skipping unreadable icon", logger.Fields{"path": path, "error": err.Error()})
			return "", nil
		}
	}
	link := filepath.Join(i.IconsDir, sizeDir(w, h), "apps", stem+LinkSuffix+"."+ext)
	return link, i.replace(path, link)
}

func (i *Integrator) replace(target, link string) error {
	managed := append([]string{filepath.Dir(target)}, i.Managed...)
	err := fsutil.ReplaceSymlink(target, link, managed...)
	if err != nil && stderrors.Is(err, fsutil.ErrForeignPath) {
		logger.Warn("not replacing file owned by something else", logger.Fields{"path": link})
		return nil
	}
	if err != nil {
		return errors.Filesystem(err, "link %s", link)
	}
	return nil
}

func sizeDir(w, h int) string {
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}

// NearestIconSize picks the standard size closest to w x h.
func NearestIconSize(w, h int) int {
	best, bestDiff := IconSizes[0], -1
	for _, s := range IconSizes {
		diff := abs(s-w) + abs(s-h)
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = s, diff
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func normalizeIcon(path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	size := NearestIconSize(cfg.Width, cfg.Height)
	if cfg.Width == size && cfg.Height == size {
		return size, size, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return 0, 0, err
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), fsutil.FileModeDefault); err != nil {
		return 0, 0, err
	}
	return size, size, nil
}
