package filestore

// NewPage returns a zeroed, PageSize-length buffer ready to be filled in
// and written with WritePage.
func NewPage() []byte {
	return make([]byte, PageSize)
}
