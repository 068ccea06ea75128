package blob

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const progressInterval = 10 * time.Second

// progressReader logs the transfer progress of a blob until its context is done.
type progressReader struct {
	transferred atomic.Int64
	total       int64
	key         string
	r           io.Reader
}

func newProgressReader(ctx context.Context, r io.Reader, key string, total int64) *progressReader {
	pr := &progressReader{r: r, key: key, total: total}
	go pr.start(ctx)

	return pr
}

func (p *progressReader) start(ctx context.Context) {
	oldValue := int64(0)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := p.transferred.Load()
			rate := fmt.Sprintf("%.2f MB/s", float64(current-oldValue)/(1024*1024*progressInterval.Seconds()))
			oldValue = current
			if p.total <= 0 {
				zap.S().Named("blob").Debugw("transferring", "key", p.key, "progress", fmt.Sprintf("%.2f Mb", float64(current)/(1024*1024)), "rate", rate)
				continue
			}

			progress := fmt.Sprintf("%.2f%%", 100*float64(current)/float64(p.total))
			zap.S().Named("blob").Debugw("transferring", "key", p.key, "progress", progress, "rate", rate)
		}
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.transferred.Add(int64(n))
	return n, err
}
