package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/internal/metrics"
	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/queue"
	"github.com/aura-webinar/eventdesk/pkg/storage"
)

// Registrations is the part of the registration store the archiver needs.
type Registrations interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	SetCodeObjectKey(ctx context.Context, id uuid.UUID, key string) error
}

// Renderer turns a token into its QR image.
type Renderer interface {
	Encode(token string) string
	RenderPNG(payload string) ([]byte, error)
}

// CodeUploader stores rendered QR images.
type CodeUploader interface {
	UploadCode(ctx context.Context, key string, png []byte) error
}

// JobSource yields jobs and takes failed ones back.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// CodeArchiver processes code archive jobs: render the registration's QR image,
// upload it to S3 and record the object key.
type CodeArchiver struct {
	regs     Registrations
	codes    Renderer
	uploader CodeUploader
	jobs     JobSource
	backoff  time.Duration
	logger   *zap.Logger
}

// NewCodeArchiver creates a code archive processor.
func NewCodeArchiver(regs Registrations, codes Renderer, uploader CodeUploader, jobs JobSource, logger *zap.Logger) *CodeArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeArchiver{regs: regs, codes: codes, uploader: uploader, jobs: jobs, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one code archive job.
func (p *CodeArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeCodeArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.CodeArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reg, err := p.regs.GetByID(ctx, payload.RegistrationID)
	if err != nil {
		return fmt.Errorf("load registration: %w", err)
	}
	if reg.CodeObjectKey != nil {
		p.logger.Info("code already archived", zap.String("registration_id", reg.ID.String()))
		return nil
	}

	png, err := p.codes.RenderPNG(p.codes.Encode(reg.Token))
	if err != nil {
		return err
	}
	key := storage.CodeKey(reg.FormID.String(), reg.ID.String())
	if err := p.uploader.UploadCode(ctx, key, png); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.regs.SetCodeObjectKey(ctx, reg.ID, key); err != nil {
		return fmt.Errorf("update registration: %w", err)
	}

	p.logger.Info("code archived", zap.String("registration_id", reg.ID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CodeArchiver) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("code archive worker stopping")
			return
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			metrics.CodeArchiveJobs.WithLabelValues("failed").Inc()
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		metrics.CodeArchiveJobs.WithLabelValues("archived").Inc()
	}
}

func (p *CodeArchiver) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
