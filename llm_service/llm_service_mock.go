package llm_service

import (
	"context"
)

type MockVisionService struct {
	ExtractTextFunc func(ctx context.Context, pagePNG []byte) (string, error)
}

func (m *MockVisionService) ExtractText(ctx context.Context, pagePNG []byte) (string, error) {
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, pagePNG)
	}
	return "mock extracted text", nil
}

type MockChatService struct {
	StructureTextFunc func(ctx context.Context, text string) (string, error)
}

func (m *MockChatService) StructureText(ctx context.Context, text string) (string, error) {
	if m.StructureTextFunc != nil {
		return m.StructureTextFunc(ctx, text)
	}
	return "mock,csv", nil
}
