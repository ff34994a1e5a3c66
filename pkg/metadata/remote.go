package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/model"
)

// flexBool accepts true/false as well as "yes"/"no", "1"/"0" strings.
type flexBool struct {
	set   bool
	value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool{set: true, value: v}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		*b = flexBool{set: true, value: true}
	case "false", "no", "0":
		*b = flexBool{set: true, value: false}
	case "":
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

func (b flexBool) ptr() *bool {
	if !b.set {
		return nil
	}
	v := b.value
	return &v
}

// flexSize accepts a number or a numeric string; anything else is unknown.
type flexSize int64

func (n *flexSize) UnmarshalJSON(data []byte) error {
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case json.Number:
		num = v
	case string:
		num = json.Number(strings.TrimSpace(v))
	default:
		*n = 0
		return nil
	}
	i, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil || i < 0 {
		*n = 0
		return nil
	}
	*n = flexSize(i)
	return nil
}

// remotePackage is one entry of a repository's JSON metadata. Singular keys
// are accepted as aliases of the list fields.
type remotePackage struct {
	Disabled    flexBool `json:"disabled"`
	DisabledAlt flexBool `json:"_disabled"`

	Pkg         string   `json:"pkg"`
	PkgID       string   `json:"pkg_id"`
	PkgName     string   `json:"pkg_name"`
	PkgFamily   string   `json:"pkg_family"`
	PkgType     string   `json:"pkg_type"`
	PkgWebpage  string   `json:"pkg_webpage"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	DownloadURL string   `json:"download_url"`
	SizeRaw     flexSize `json:"size_raw"`
	Bsum        string   `json:"bsum"`
	BuildDate   string   `json:"build_date"`
	Icon        string   `json:"icon"`
	Desktop     string   `json:"desktop"`
	AppID       string   `json:"app_id"`
	Rank        flexSize `json:"rank"`

	SrcURLs     []string `json:"src_urls"`
	SrcURL      []string `json:"src_url"`
	Homepages   []string `json:"homepages"`
	Homepage    []string `json:"homepage"`
	Licenses    []string `json:"licenses"`
	License     []string `json:"license"`
	Maintainers []string `json:"maintainers"`
	Maintainer  []string `json:"maintainer"`
	Notes       []string `json:"notes"`
	Note        []string `json:"note"`
	Tags        []string `json:"tags"`
	Tag         []string `json:"tag"`
	Provides    []string `json:"provides"`

	SoarSyms           flexBool `json:"soar_syms"`
	DesktopIntegration flexBool `json:"desktop_integration"`
	Portable           flexBool `json:"portable"`
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func (r *remotePackage) disabled() bool {
	return r.Disabled.value || r.DisabledAlt.value
}

func (r *remotePackage) toPackage() model.Package {
	p := model.Package{
		Pkg:                r.Pkg,
		PkgID:              r.PkgID,
		PkgName:            r.PkgName,
		PkgType:            r.PkgType,
		Family:             r.PkgFamily,
		Description:        r.Description,
		Version:            r.Version,
		DownloadURL:        r.DownloadURL,
		Size:               int64(r.SizeRaw),
		Checksum:           r.Bsum,
		Icon:               r.Icon,
		Desktop:            r.Desktop,
		AppID:              r.AppID,
		Webpage:            r.PkgWebpage,
		BuildDate:          r.BuildDate,
		Homepages:          firstNonEmpty(r.Homepages, r.Homepage),
		Tags:               firstNonEmpty(r.Tags, r.Tag),
		Notes:              firstNonEmpty(r.Notes, r.Note),
		SourceURLs:         firstNonEmpty(r.SrcURLs, r.SrcURL),
		Licenses:           firstNonEmpty(r.Licenses, r.License),
		Provides:           model.ParseProvides(r.Provides),
		SoarSyms:           r.SoarSyms.value,
		DesktopIntegration: r.DesktopIntegration.ptr(),
		Portable:           r.Portable.ptr(),
		Rank:               int(r.Rank),
	}
	if p.Pkg == "" {
		p.Pkg = p.PkgName
	}
	for _, m := range firstNonEmpty(r.Maintainers, r.Maintainer) {
		p.Maintainers = append(p.Maintainers, model.ParseMaintainer(m))
	}
	return p
}

// DecodeJSON parses a JSON package array. Disabled entries and entries
// without an identity or download URL are skipped.
func DecodeJSON(data []byte) ([]model.Package, error) {
	var remote []remotePackage
	if err := json.Unmarshal(data, &remote); err != nil {
		return nil, fmt.Errorf("%w: decode JSON metadata: %w", errors.ErrInvalidSnapshot, err)
	}
	out := make([]model.Package, 0, len(remote))
	skipped := 0
	for i := range remote {
		r := &remote[i]
		if r.disabled() {
			continue
		}
		if r.PkgID == "" || r.PkgName == "" || r.Version == "" || r.DownloadURL == "" {
			skipped++
			continue
		}
		out = append(out, r.toPackage())
	}
	if skipped > 0 {
		logger.Warn("skipped incomplete metadata entries", logger.Fields{"count": skipped})
	}
	return out, nil
}
