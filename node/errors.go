package node

import "errors"

// Structural errors indicate a malformed or corrupt page. They are fatal
// for the containing operation; callers should assume the file is damaged
// and fall back to the rescue pass (see the analyze package).
var (
	ErrPageLengthInvalid = errors.New("node: page buffer is not exactly one page long")
	ErrWrongNodeKind     = errors.New("node: kind byte does not match any defined node kind")
	ErrChecksumError     = errors.New("node: record checksum mismatch")
	ErrEntryCountError   = errors.New("node: entry count exceeds the node's order")
	ErrItemCountError    = errors.New("node: item count exceeds the item order")
	ErrItemWrongSize     = errors.New("node: item is not exactly item_size bytes")
	ErrBlobSizeInvalid   = errors.New("node: blob count header disagrees with available bytes")
	ErrDataTooLarge      = errors.New("node: encoded payload does not fit in one page")
	ErrPageNotSet        = errors.New("node: page reference is unset (-1) where a page was required")
)
