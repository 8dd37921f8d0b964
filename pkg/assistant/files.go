package assistant

import (
	"context"
	"io"
)

// File describes an attachment stored by the upstream.
type File struct {
	ID    string `json:"fileId"`
	Name  string `json:"filename"`
	Bytes int    `json:"bytes"`
}

// FileStore passes attachments through to the upstream. Uploaded files can be
// referenced by UserTurn.AttachmentIDs.
type FileStore interface {
	UploadFile(ctx context.Context, name string, data []byte) (File, error)
	// DownloadFile streams a stored file. The caller closes the reader.
	DownloadFile(ctx context.Context, id string) (File, io.ReadCloser, error)
}
