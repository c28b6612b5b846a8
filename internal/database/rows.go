package database

// UnmarshalFunc decodes one stored document into dest.
type UnmarshalFunc func(data []byte, dest interface{}) error

type docRow struct {
	data      []byte
	unmarshal UnmarshalFunc
}

// NewRow wraps one encoded document.
func NewRow(data []byte, unmarshal UnmarshalFunc) Row {
	return &docRow{data: data, unmarshal: unmarshal}
}

func (r *docRow) Scan(dest interface{}) error {
	return r.unmarshal(r.data, dest)
}

type sliceRows struct {
	docs      [][]byte
	pos       int
	unmarshal UnmarshalFunc
}

// NewSliceRows iterates over a snapshot of encoded documents.
func NewSliceRows(docs [][]byte, unmarshal UnmarshalFunc) Rows {
	return &sliceRows{docs: docs, pos: -1, unmarshal: unmarshal}
}

func (r *sliceRows) Next() bool {
	if r.pos+1 >= len(r.docs) {
		r.pos = len(r.docs)
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Scan(dest interface{}) error {
	return r.unmarshal(r.docs[r.pos], dest)
}

func (r *sliceRows) Err() error { return nil }

func (r *sliceRows) Close() error {
	r.docs = nil
	return nil
}
