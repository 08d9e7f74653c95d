package document

import "time"

// SearchResult is one matched document as returned to the caller, with the
// number of occurrences of the query and context excerpts around them.
type SearchResult struct {
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	FileType     FileType  `json:"file_type"`
	LastModified time.Time `json:"last_modified"`
	Occurrences  int       `json:"occurrences"`
	Excerpts     []string  `json:"excerpts"`
}
