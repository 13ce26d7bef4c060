package util

import "errors"

var (
	ErrInvalidPoolSize = errors.New("invalid pool size")
	ErrInvalidPageId   = errors.New("invalid page id")
	ErrInvalidRunSize  = errors.New("run size must be positive")

	ErrPoolExhausted   = errors.New("all frames are pinned")
	ErrPageNotResident = errors.New("page is not in the buffer pool")
	ErrPageNotPinned   = errors.New("page is not pinned")
	ErrPagePinned      = errors.New("page is pinned")
	ErrMemcpyResident  = errors.New("memcpy pin would clobber a resident page")

	ErrRecordTooLarge = errors.New("record does not fit on a data page")
	ErrNoSpace        = errors.New("not enough free space on page")
	ErrInvalidRID     = errors.New("invalid record id")
	ErrLengthMismatch = errors.New("updated record has a different length")

	ErrDuplicateFile = errors.New("file entry already exists")
	ErrUnknownFile   = errors.New("unknown file entry")
	ErrDirCorrupt    = errors.New("heap file directory chain is inconsistent")

	ErrEndOfScan = errors.New("no more records in scan")
)
