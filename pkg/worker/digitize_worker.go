package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/naphat-c/nacc-digitizer/internal/extract"
	"github.com/naphat-c/nacc-digitizer/internal/models"
	"github.com/naphat-c/nacc-digitizer/pkg/logger"
	"github.com/naphat-c/nacc-digitizer/pkg/queue"
)

// DeclarationProcessor 数字化管道能力,worker 消费它而不拥有它
type DeclarationProcessor interface {
	Process(ctx context.Context, doc *models.SourceDocument, ectx extract.Context) models.ScoredRecord
}

// DigitizeWorker 从队列消费申报文档任务并驱动管道
type DigitizeWorker struct {
	BaseWorker
	pipeline DeclarationProcessor
	queue    queue.Queue
}

func NewDigitizeWorker(cfg *Config, pipeline DeclarationProcessor, q queue.Queue, log logger.Logger) (*DigitizeWorker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &DigitizeWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		pipeline: pipeline,
		queue:    q,
	}

	w.registerHandlers()
	return w, nil
}

func (w *DigitizeWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeDigitize, w.handleDigitize)
}

func (w *DigitizeWorker) handleDigitize(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	w.logger.Info("Processing digitize task",
		logger.String("taskId", task.ID),
		logger.String("documentPath", task.DocumentPath),
		logger.Int("submitterId", task.SubmitterID),
	)

	if task.ID == "" || task.DocumentPath == "" {
		return fmt.Errorf("invalid task data: missing required fields")
	}

	started := time.Now()

	doc, err := w.loadDocument(&task)
	if err != nil {
		w.saveStatus(ctx, &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     "failed",
			Error:      err.Error(),
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		return err
	}

	ectx := extract.Context{
		DocumentID:  doc.ID,
		SubmitterID: task.SubmitterID,
		NaccID:      task.NaccID,
	}

	// 管道从不抛错,失败折叠成 failed 状态的结果
	scored := w.pipeline.Process(ctx, doc, ectx)

	w.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     "completed",
		Progress:   1.0,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Result:     &scored,
	})

	w.logger.Info("Digitize task finished",
		logger.String("taskId", task.ID),
		logger.String("status", string(scored.Status)),
		logger.Float64("confidence", scored.OverallConfidence),
	)
	return nil
}

func (w *DigitizeWorker) loadDocument(task *queue.Task) (*models.SourceDocument, error) {
	f, err := os.Open(task.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	filename := task.Filename
	if filename == "" {
		filename = task.DocumentPath
	}
	return models.NewSourceDocument(task.ID, filename, f)
}

func (w *DigitizeWorker) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if w.queue == nil {
		return
	}
	if err := w.queue.SaveResult(ctx, status); err != nil {
		w.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.Error(err),
		)
	}
}

func (w *DigitizeWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
