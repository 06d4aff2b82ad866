package collections

import "time"

// Document is one indexed unit of course content.
type Document struct {
	// ID is unique within a collection.
	ID string `json:"id"`

	// Collection is the logical collection the document belongs to.
	Collection string `json:"collection"`

	// Content is the searchable text.
	Content string `json:"content"`

	// URL points at the source page or thread, when known.
	URL string `json:"url,omitempty"`

	// Title is a short human-readable label.
	Title string `json:"title,omitempty"`

	// ContentType categorizes the document (discussion, overview,
	// reference, misc).
	ContentType string `json:"content_type,omitempty"`

	// IndexedAt records when the document was last (re)indexed.
	IndexedAt time.Time `json:"indexed_at,omitempty"`
}

// KeywordHit is one keyword-index match.
type KeywordHit struct {
	ID string

	// Score is the scaled text-match score. Strong matches land near
	// 900,000 on a 0..1,000,000 scale.
	Score int64
}

// VectorHit is one vector-index match.
type VectorHit struct {
	ID string

	// Distance is the cosine distance to the query vector (0 identical).
	Distance float64
}

// Info summarizes one collection.
type Info struct {
	Name     string `json:"name"`
	DocCount int    `json:"doc_count"`
}
