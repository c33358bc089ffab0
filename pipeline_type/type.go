package pipeline_type

// PageImage is a single rasterized PDF page. Pages are numbered from 1 in
// document order and live only for the duration of one request.
type PageImage struct {
	PageNumber int
	PNG        []byte
	Width      int
	Height     int
}

// ExtractedPage pairs a page number with the text the vision model read from
// it. Text may be empty when the page has no recognizable text.
type ExtractedPage struct {
	PageNumber int
	Text       string
}
