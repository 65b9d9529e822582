package types

// SortClause is one (key, direction) pair of a sort specification
type SortClause struct {
	Key        string `json:"key"`
	Descending bool   `json:"descending,omitempty"`
}

// Row is one entry of an allDocs listing. Doc is only set when the caller
// asked for documents to be included.
type Row struct {
	ID  string   `json:"id"`
	Doc Document `json:"doc,omitempty"`
}

// AllDocsResponse is the result of a listing. TotalRows always holds the
// number of documents that matched the query, before any Limit/Skip.
type AllDocsResponse struct {
	Rows      []Row `json:"rows"`
	TotalRows int   `json:"total_rows"`
}

// Docs returns the documents carried by the rows, skipping rows without one
func (r *AllDocsResponse) Docs() []Document {
	out := make([]Document, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.Doc != nil {
			out = append(out, row.Doc)
		}
	}
	return out
}

// Ascending is a convenience constructor for an ascending sort clause
func Ascending(key string) SortClause {
	return SortClause{Key: key}
}

// Descending is a convenience constructor for a descending sort clause
func Descending(key string) SortClause {
	return SortClause{Key: key, Descending: true}
}
