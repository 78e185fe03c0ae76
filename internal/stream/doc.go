// Package stream decodes the line-delimited generation stream into discrete
// frames. The transport gives no framing lengths; boundary detection relies
// solely on the line separator, so the decoder keeps a rolling buffer and
// holds the trailing incomplete fragment until the next chunk arrives.
package stream
