package api

// MinBlocksize smallest block size served from slabs by default.
const MinBlocksize = int64(16)

// MaxBlocksize largest block size served from slabs by default, requests
// larger than this are forwarded to the fallback allocator.
const MaxBlocksize = int64(256)
