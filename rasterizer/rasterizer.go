package rasterizer

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/gen2brain/go-fitz"

	"github.com/orsolab/pdfcsv/pipeline_type"
)

const defaultDPI = 200

// Rasterizer converts a PDF byte stream into ordered page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte) ([]pipeline_type.PageImage, error)
}

// FitzRasterizer renders PDF pages to PNG images using MuPDF.
type FitzRasterizer struct {
	dpi    float64
	logger *slog.Logger
}

func NewFitzRasterizer(dpi float64, logger *slog.Logger) *FitzRasterizer {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FitzRasterizer{
		dpi:    dpi,
		logger: logger,
	}
}

func (r *FitzRasterizer) Rasterize(ctx context.Context, data []byte) ([]pipeline_type.PageImage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, pipeline_type.RasterizationError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, pipeline_type.RasterizationError("PDF has no pages", nil)
	}

	r.logger.Debug("Starting PDF rasterization",
		slog.Int("total_pages", pageCount),
		slog.Float64("dpi", r.dpi))

	pages := make([]pipeline_type.PageImage, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, r.dpi)
		if err != nil {
			return nil, pipeline_type.RasterizationError(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, pipeline_type.RasterizationError(fmt.Sprintf("failed to encode page %d", pageNum+1), err)
		}

		bounds := img.Bounds()
		pages = append(pages, pipeline_type.PageImage{
			PageNumber: pageNum + 1,
			PNG:        buf.Bytes(),
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})

		r.logger.Debug("Rasterized page",
			slog.Int("page_number", pageNum+1),
			slog.Int("width", bounds.Dx()),
			slog.Int("height", bounds.Dy()))
	}

	return pages, nil
}
