package tlv

import "errors"

// ErrTruncatedPayload is returned by variable-size struct decoders (e.g.
// DecodeL2Snapshot) when the declared level/entry counts don't fit in the
// bytes actually present.
var ErrTruncatedPayload = errors.New("tlv: truncated variable-size payload")
