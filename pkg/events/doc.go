// Package events is a small in-memory pub/sub broker for streaming session
// lifecycle and step events to whatever is watching a run — a CLI progress
// view in the common case, a dataset collector in batch mode. Publish never
// blocks past a full subscriber buffer; a slow subscriber drops events
// rather than stalling the session.
package events
