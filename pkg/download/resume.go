package download

import (
	"encoding/json"
	"os"

	"github.com/pkgforge/soar/pkg/fsutil"
)

const (
	// PartSuffix marks an incomplete download.
	PartSuffix = ".part"
	// ResumeSuffix marks the record describing a partial download.
	ResumeSuffix = ".resume"
)

// resumeState is persisted next to a partial file so an interrupted transfer
// can continue with a Range request against the same remote object.
type resumeState struct {
	URL          string `json:"url"`
	Total        int64  `json:"total"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	Downloaded   int64  `json:"downloaded"`
}

func partPath(dest string) string   { return dest + PartSuffix }
func resumePath(dest string) string { return dest + ResumeSuffix }

// validator is the If-Range value: the ETag when known, else Last-Modified.
func (s *resumeState) validator() string {
	if s.ETag != "" {
		return s.ETag
	}
	return s.LastModified
}

// loadResume returns the persisted state and the current size of the partial
// file when both exist and describe the same URL. Anything else means a fresh start.
func loadResume(dest, url string) (*resumeState, int64) {
	data, err := os.ReadFile(resumePath(dest))
	if err != nil {
		return nil, 0
	}
	var st resumeState
	if err := json.Unmarshal(data, &st); err != nil || st.URL != url || st.validator() == "" {
		return nil, 0
	}
	info, err := os.Stat(partPath(dest))
	if err != nil || info.Size() == 0 {
		return nil, 0
	}
	if st.Total > 0 && info.Size() > st.Total {
		return nil, 0
	}
	return &st, info.Size()
}

func saveResume(dest string, st *resumeState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(resumePath(dest), data, fsutil.FileModeSecure)
}

func discardPartial(dest string) {
	_ = fsutil.RemoveIfExists(partPath(dest))
	_ = fsutil.RemoveIfExists(resumePath(dest))
}
