package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/search"
	"go.uber.org/zap"
)

// Query retrieves matches from the tenant's collection and answers the question from them.
// No matches is a successful result carrying NoInformationAnswer. When generation fails the
// result keeps the retrieved sources and reports the generation error. It never returns nil.
func (p *Pipeline) Query(ctx context.Context, req models.QueryRequest) *models.QueryResult {
	start := time.Now()
	res := &models.QueryResult{Sources: []models.RetrievalMatch{}}
	fail := func(err error) *models.QueryResult {
		res.Success = false
		res.Code = models.ReasonCode(err)
		res.Stage = models.StageOf(err)
		res.Message = err.Error()
		return res
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	logger := p.logger.With(zap.String("tenant_id", req.TenantID), zap.String("document_type", req.DocumentType))

	k := req.TopK
	if k == 0 {
		k = p.topK
	}
	matches, err := p.retriever.Retrieve(ctx, search.RetrieveRequest{
		Query:        req.Question,
		TenantID:     req.TenantID,
		DocumentType: req.DocumentType,
		K:            k,
	})
	if err != nil {
		logger.Error("Retrieval failed", zap.Error(err))
		return fail(err)
	}

	if len(matches) == 0 {
		logger.Info("No matches for question", zap.Duration("elapsed", time.Since(start)))
		res.Success = true
		res.Answer = NoInformationAnswer
		return res
	}
	res.Sources = matches
	res.TotalDocumentsSearched = len(matches)

	answer, err := p.generator.Generate(ctx, req.Question, matches)
	if err != nil {
		logger.Error("Answer generation failed", zap.Int("matches", len(matches)), zap.Error(err))
		fail(err)
		res.Message = fmt.Sprintf("Se encontraron %d documentos pero no se pudo generar la respuesta: %v", len(matches), err)
		return res
	}

	res.Success = true
	res.Answer = answer
	logger.Info("Question answered",
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)))
	return res
}
