package llm_service

import "context"

// VisionService transcribes the text visible in a single page image.
type VisionService interface {
	ExtractText(ctx context.Context, pagePNG []byte) (string, error)
}

// ChatService reorganizes extracted document text into CSV.
type ChatService interface {
	StructureText(ctx context.Context, text string) (string, error)
}
