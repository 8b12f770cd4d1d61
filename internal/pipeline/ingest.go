package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hyperjump/nuevorag/internal/indexer"
	"github.com/hyperjump/nuevorag/internal/models"
	"go.uber.org/zap"
)

// Ingest states, in order. Any failure moves the run to StateFailed.
const (
	StateReceived  = "received"
	StateExtracted = "extracted"
	StateChunked   = "chunked"
	StateEmbedded  = "embedded"
	StateIndexed   = "indexed"
	StateDone      = "done"
	StateFailed    = "failed"
)

// HandleEvent ingests every record of an object event independently. The batch always
// succeeds; per-record outcomes are in Records.
func (p *Pipeline) HandleEvent(ctx context.Context, event *models.ObjectEvent) *models.BatchResult {
	records := []models.IngestResult{}
	if event != nil {
		for _, rec := range event.Records {
			res := p.Ingest(ctx, rec.S3.Bucket.Name, rec.S3.Object.Key)
			records = append(records, *res)
		}
	}
	p.logger.Info("Event processed", zap.Int("records", len(records)))
	return &models.BatchResult{
		Success: true,
		Message: fmt.Sprintf("Procesados %d archivos exitosamente", len(records)),
		Records: records,
	}
}

// Ingest fetches, extracts, chunks, embeds and indexes one uploaded object.
// rawKey is the key as delivered in the event (URL-encoded). It never returns nil.
func (p *Pipeline) Ingest(ctx context.Context, bucket, rawKey string) *models.IngestResult {
	start := time.Now()
	res := &models.IngestResult{ObjectKey: rawKey}
	logger := p.logger.With(zap.String("bucket", bucket), zap.String("key", rawKey))

	key, err := ParseObjectKey(rawKey)
	if err != nil {
		logger.Warn("Object key rejected", zap.Error(err))
		res.Status = models.StatusRejected
		res.Code = models.ReasonCode(err)
		res.Stage = models.StageReceive
		res.Message = err.Error()
		return res
	}
	res.ObjectKey = key.Key
	logger = logger.With(
		zap.String("tenant_id", key.TenantID),
		zap.String("document_type", key.DocumentType),
		zap.String("filename", key.Filename))

	extractFn, ok := p.strategies.Lookup(key.Extension)
	if !ok {
		err := models.NewStageError(models.StageReceive, models.ErrUnsupportedFormat,
			fmt.Errorf("extensión %q no soportada", key.Extension))
		logger.Info("Object skipped", zap.String("extension", key.Extension))
		res.Status = models.StatusSkipped
		res.Code = models.ReasonCode(err)
		res.Message = err.Error()
		return res
	}

	run := &models.IngestionRun{
		ID:           uuid.NewString(),
		TenantID:     key.TenantID,
		DocumentType: key.DocumentType,
		Bucket:       bucket,
		ObjectKey:    key.Key,
		Filename:     key.Filename,
		Status:       models.StatusRunning,
		StartedAt:    start.UTC(),
	}
	if err := p.ledger.CreateRun(ctx, run); err != nil {
		logger.Warn("Failed to record run", zap.Error(err))
	}
	res.RunID = run.ID
	logger = logger.With(zap.String("run_id", run.ID))
	logger.Debug("Ingest state", zap.String("state", StateReceived))

	p.ingest(ctx, key, bucket, extractFn, res, logger)

	run.Finish(res, time.Now().UTC())
	if err := p.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("Failed to finish run", zap.Error(err))
	}
	if res.Success {
		logger.Info("Document ingested",
			zap.Int("chunks", res.Stats.Chunks),
			zap.Int("indexed", res.Stats.Indexed),
			zap.Duration("elapsed", run.Duration()))
	} else {
		logger.Error("Document ingest failed",
			zap.String("stage", string(res.Stage)),
			zap.String("code", res.Code),
			zap.String("message", res.Message))
	}
	return res
}

func (p *Pipeline) ingest(ctx context.Context, key *ObjectKey, bucket string, extractFn ExtractFunc, res *models.IngestResult, logger *zap.Logger) {
	stats := &models.IngestStats{Dimensions: p.embedder.Dimensions()}
	res.Stats = stats
	fail := func(stage models.Stage, kind, err error) {
		if models.StageOf(err) == "" {
			err = models.NewStageError(stage, kind, err)
		}
		logger.Debug("Ingest state", zap.String("state", StateFailed))
		res.Status = models.StatusFailed
		res.Code = models.ReasonCode(err)
		res.Stage = models.StageOf(err)
		res.Message = err.Error()
	}

	obj, err := p.objects.GetObject(ctx, bucket, key.Key)
	if err != nil {
		fail(models.StageFetch, models.ErrObjectRead, err)
		return
	}

	text, err := extractFn(obj.Content)
	if err != nil {
		fail(models.StageExtract, models.ErrExtraction, err)
		return
	}
	stats.Characters = utf8.RuneCountInString(text)
	logger.Debug("Ingest state", zap.String("state", StateExtracted), zap.Int("characters", stats.Characters))

	chunks, err := p.chunker.Split(text)
	if err != nil {
		fail(models.StageChunk, models.ErrChunking, err)
		return
	}
	if len(chunks) == 0 {
		fail(models.StageChunk, models.ErrChunking, errors.New("no chunks produced"))
		return
	}
	stats.Chunks = len(chunks)
	logger.Debug("Ingest state", zap.String("state", StateChunked), zap.Int("chunks", stats.Chunks))

	batch, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		fail(models.StageEmbed, models.ErrEmbedding, err)
		return
	}
	for _, f := range batch.Failures {
		logger.Warn("Chunk embedding failed", zap.Int("chunk_index", f.Index), zap.Error(f.Err))
	}
	kept, vectors := batch.Pair(chunks)
	stats.Embeddings = len(vectors)
	stats.FailedEmbeddings = len(batch.Failures)
	if len(vectors) == 0 {
		fail(models.StageEmbed, models.ErrEmbedding, fmt.Errorf("all %d chunk embeddings failed", len(chunks)))
		return
	}
	logger.Debug("Ingest state", zap.String("state", StateEmbedded), zap.Int("embeddings", stats.Embeddings))

	written, err := p.writer.Write(ctx, indexer.WriteRequest{
		TenantID:     key.TenantID,
		DocumentType: key.DocumentType,
		SourceFile:   key.Key,
		FileFormat:   key.Format(),
		Chunks:       kept,
		Vectors:      vectors,
	})
	if err != nil {
		fail(models.StageIndex, models.ErrIndex, err)
		return
	}
	stats.Indexed = written.Indexed
	logger.Debug("Ingest state", zap.String("state", StateIndexed), zap.String("collection", written.Collection))

	res.Success = true
	res.Status = models.StatusProcessed
	res.Message = fmt.Sprintf("PDF procesado e indexado: %d chunks", written.Indexed)
	res.Details = &models.IngestDetails{
		TenantID:        key.TenantID,
		IndexName:       written.Collection,
		ChunksCount:     len(kept),
		EmbeddingsCount: len(vectors),
		DocumentType:    key.DocumentType,
		Filename:        key.Filename,
		CollectionNew:   written.Created,
	}
	logger.Debug("Ingest state", zap.String("state", StateDone))
}
