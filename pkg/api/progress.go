package api

import (
	"io"

	"github.com/google/uuid"
)

// ProgressEvent reports how much of an upload body has been sent. UploadID
// correlates the events of one upload in logs and progress indicators.
type ProgressEvent struct {
	UploadID string
	Loaded   int64
	Total    int64
	Percent  int
}

type progressReader struct {
	reader   io.Reader
	uploadID string
	loaded   int64
	total    int64
	callback func(ProgressEvent)
}

func newProgressReader(r io.Reader, total int64, callback func(ProgressEvent)) *progressReader {
	return &progressReader{
		reader:   r,
		uploadID: uuid.NewString(),
		total:    total,
		callback: callback,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		percent := 0
		if p.total > 0 {
			percent = int(p.loaded * 100 / p.total)
		}
		p.callback(ProgressEvent{
			UploadID: p.uploadID,
			Loaded:   p.loaded,
			Total:    p.total,
			Percent:  percent,
		})
	}
	return n, err
}
