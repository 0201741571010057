package filetype

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// PDF is the only media type accepted for upload.
const PDF = "application/pdf"

// FileTypeInfo describes what an upload claims to be and what its bytes look like.
type FileTypeInfo struct {
	Declared  string
	Detected  string
	Extension string
	Supported bool
	Mismatch  bool
}

// Detector gates uploads on their declared type. Content sniffing is
// advisory: a mismatch is logged, and a file that is not really a PDF
// fails later when it is decoded.
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// IsPDF reports whether the declared media type is application/pdf.
// Parameters such as charset are ignored.
func IsPDF(declared string) bool {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mt = strings.TrimSpace(strings.ToLower(declared))
	}
	return mt == PDF
}

// Detect classifies an upload from its declared type and magic bytes.
func (d *Detector) Detect(name, declared string, data []byte) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{
		Declared:  declared,
		Detected:  mtype.String(),
		Extension: mtype.Extension(),
		Supported: IsPDF(declared),
	}
	info.Mismatch = info.Supported && !mtype.Is(PDF)

	if info.Mismatch {
		log.Warn().
			Str("file", name).
			Str("declared", declared).
			Str("detected", info.Detected).
			Msg("declared PDF does not look like one")
	} else {
		log.Debug().Str("file", name).Str("mime", info.Detected).Str("ext", info.Extension).Msg("detected file type")
	}
	return info
}
