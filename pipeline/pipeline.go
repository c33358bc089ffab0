package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/orsolab/pdfcsv/llm_service"
	"github.com/orsolab/pdfcsv/pipeline_type"
	"github.com/orsolab/pdfcsv/rasterizer"
)

type Stage string

const (
	StageReceived   Stage = "received"
	StageRasterized Stage = "rasterized"
	StageExtracted  Stage = "extracted"
	StageStructured Stage = "structured"
	StageFailed     Stage = "failed"
)

// PageDelimiter separates per-page texts before structuring. Empty pages are
// kept as empty strings so the joined text preserves page count and order.
const PageDelimiter = "\n"

// Pipeline runs the per-request conversion flow: rasterize the PDF, extract
// text from each page in document order, then structure the combined text as
// CSV. The flow is strictly sequential and carries no state across requests.
type Pipeline struct {
	rasterizer rasterizer.Rasterizer
	vision     llm_service.VisionService
	chat       llm_service.ChatService
	logger     *slog.Logger
}

func New(r rasterizer.Rasterizer, vision llm_service.VisionService, chat llm_service.ChatService, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		rasterizer: r,
		vision:     vision,
		chat:       chat,
		logger:     logger,
	}
}

// Run converts PDF bytes to CSV text. Any stage failure aborts the remaining
// stages; a partial result is never returned.
func (p *Pipeline) Run(ctx context.Context, requestID string, pdfData []byte) (string, error) {
	p.logStage(requestID, StageReceived, slog.Int("pdf_bytes", len(pdfData)))

	pages, err := p.rasterizer.Rasterize(ctx, pdfData)
	if err != nil {
		return "", p.fail(requestID, StageRasterized, err)
	}
	p.logStage(requestID, StageRasterized, slog.Int("pages", len(pages)))

	// One vision call per page, in document order. The first failed page
	// aborts the request: the structurer operates on the whole document and
	// a silently missing page would corrupt whatever table it infers.
	extracted := make([]pipeline_type.ExtractedPage, 0, len(pages))
	for _, page := range pages {
		text, err := p.vision.ExtractText(ctx, page.PNG)
		if err != nil {
			if _, ok := pipeline_type.AsError(err); !ok {
				err = pipeline_type.ExternalServiceError(
					fmt.Sprintf("text extraction failed on page %d", page.PageNumber), err)
			}
			return "", p.fail(requestID, StageExtracted, err)
		}
		extracted = append(extracted, pipeline_type.ExtractedPage{
			PageNumber: page.PageNumber,
			Text:       text,
		})
	}
	p.logStage(requestID, StageExtracted, slog.Int("pages", len(extracted)))

	texts := make([]string, len(extracted))
	for i, page := range extracted {
		texts[i] = page.Text
	}
	combined := strings.Join(texts, PageDelimiter)

	csv, err := p.chat.StructureText(ctx, combined)
	if err != nil {
		if _, ok := pipeline_type.AsError(err); !ok {
			err = pipeline_type.ExternalServiceError("text structuring failed", err)
		}
		return "", p.fail(requestID, StageStructured, err)
	}
	p.logStage(requestID, StageStructured, slog.Int("csv_bytes", len(csv)))

	return csv, nil
}

func (p *Pipeline) logStage(requestID string, stage Stage, attrs ...any) {
	args := append([]any{
		slog.String("request_id", requestID),
		slog.String("stage", string(stage)),
	}, attrs...)
	p.logger.Info("Pipeline stage completed", args...)
}

func (p *Pipeline) fail(requestID string, stage Stage, err error) error {
	p.logger.Error("Pipeline stage failed",
		slog.String("request_id", requestID),
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()))
	return err
}
