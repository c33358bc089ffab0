package rasterizer

import (
	"bytes"

	"github.com/ledongthuc/pdf"

	"github.com/orsolab/pdfcsv/pipeline_type"
)

var pdfMagic = []byte("%PDF-")

// ValidatePDF checks that the uploaded bytes are a parseable PDF document
// before any rasterization work is attempted.
func ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return pipeline_type.ValidationError("no file provided", nil)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return pipeline_type.UnsupportedMediaError("file must be a PDF", nil)
	}
	if _, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		return pipeline_type.UnsupportedMediaError("file is not a valid PDF", err)
	}
	return nil
}
