package storage

import "time"

// Contrib is one cached revision row, keyed by (revid, site).
type Contrib struct {
	RevID      int64
	Site       string
	ParentID   int64
	User       string
	Page       string
	Timestamp  time.Time
	Size       int64
	ParentSize int64
}

// TextKey identifies a stored revision fulltext.
type TextKey struct {
	RevID int64
	Site  string
}

// Stats holds aggregate statistics about the contribution cache.
type Stats struct {
	TotalContribs     int64
	TotalTexts        int64
	TotalUsers        int64
	OldestContrib     time.Time
	NewestContrib     time.Time
	DatabaseSizeBytes int64
	TopPages          []PageCount
}

// PageCount pairs a page with its cached revision count.
type PageCount struct {
	Site  string
	Page  string
	Count int64
}
