package taillog

import (
	"fmt"

	"github.com/CVDpl/go-taillog/internal/common"
)

// dataLog is the fixed-capacity byte region holding concatenated record
// payloads. Bytes outside the published prefix have undefined content to
// readers; writer exclusivity over reserved ranges makes unsynchronised
// copies safe.
type dataLog struct {
	buf    []byte
	mapped bool
}

func newDataLog(size uint32, logger common.Logger) (*dataLog, error) {
	buf, mapped, err := allocLog(int64(size))
	if err != nil {
		return nil, fmt.Errorf("allocate data log: %w", err)
	}
	logger.Debug("data log allocated", "bytes", size, "mmap", mapped)
	return &dataLog{buf: buf, mapped: mapped}, nil
}

func (d *dataLog) close() error {
	if d.buf == nil {
		return nil
	}
	buf := d.buf
	d.buf = nil
	if d.mapped {
		return freeLog(buf)
	}
	return nil
}
