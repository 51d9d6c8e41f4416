package biz

import (
	"github.com/franklin001/feishu-sentinel/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Analyze    *usecase.AnalyzeUsecase
	Moderation *usecase.ModerationUsecase
}
