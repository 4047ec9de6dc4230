package model

// FileType identifies the original format of an ingested document.
// Text extraction happens outside this service; only the label is kept.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeTXT  FileType = "txt"
	FileTypeDOCX FileType = "docx"
)

func (t FileType) Valid() bool {
	switch t {
	case FileTypePDF, FileTypeTXT, FileTypeDOCX:
		return true
	}
	return false
}

// Document is the extracted text of a single source file as delivered by
// the extraction layer. Immutable once ingested; destroyed with its database.
type Document struct {
	SourceID string   `json:"source_id"`
	Filename string   `json:"filename"`
	FileType FileType `json:"file_type"`
	Text     string   `json:"text"`
}
