// Package flatfile stores corpus records as a single flat file of
// fixed-size binary records, sorted by digest.
//
// The format has no header, index or framing: the file is exactly
// N*Size bytes of consecutive records in digest order. Lookups are
// plain binary search over the memory-mapped file; a range prefix maps
// to a contiguous record interval. Writers append in order; an
// interrupted write is repaired by truncating back to a whole number
// of records.
package flatfile
