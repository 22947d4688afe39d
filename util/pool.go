package util

import "sync"

// ReceiveBufSize is the largest chunk a single transport receive
// returns.  Counterparty responses are read in one call of this size.
const ReceiveBufSize = 4096

// BufPool provides reusable receive buffers so that a streaming
// market-data loop does not allocate 4 KiB per round trip.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReceiveBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished and must copy out anything they keep.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.  Buffers that were
// resliced below ReceiveBufSize are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) < ReceiveBufSize {
		return
	}
	*buf = (*buf)[:ReceiveBufSize]
	BufPool.Put(buf)
}
