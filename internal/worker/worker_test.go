package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/eventdesk/internal/codes"
	"github.com/aura-webinar/eventdesk/internal/forms"
	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/internal/registrations"
	"github.com/aura-webinar/eventdesk/pkg/queue"
)

type memUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (u *memUploader) UploadCode(_ context.Context, key string, png []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.objects[key] = png
	return nil
}

// chanSource feeds jobs from a channel and records retries.
type chanSource struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (s *chanSource) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-s.jobs:
		return j, nil
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (s *chanSource) Retry(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Attempt++
	s.retried = append(s.retried, job)
	return nil
}

func (s *chanSource) retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retried)
}

type fixture struct {
	store    *registrations.InMemory
	codes    *codes.Service
	uploader *memUploader
	source   *chanSource
	archiver *CodeArchiver
	reg      *models.Registration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	formStore := forms.NewInMemory()
	form := &models.Form{Fields: []models.FieldSpec{{Name: "name", Type: models.FieldText}}}
	require.NoError(t, formStore.Create(ctx, form))
	_, err := formStore.Publish(ctx, form.ID)
	require.NoError(t, err)

	store := registrations.NewInMemory(formStore)
	codeSvc, err := codes.NewService("http://localhost:8080/verify", 0)
	require.NoError(t, err)
	token, err := codeSvc.Mint()
	require.NoError(t, err)
	reg := &models.Registration{FormID: form.ID, Token: token, Status: models.StatusRegistered, Answers: map[string]string{}}
	require.NoError(t, store.Insert(ctx, reg, time.Time{}))

	f := &fixture{
		store:    store,
		codes:    codeSvc,
		uploader: &memUploader{objects: make(map[string][]byte)},
		source:   &chanSource{jobs: make(chan *queue.Job, 4)},
		reg:      reg,
	}
	f.archiver = NewCodeArchiver(store, codeSvc, f.uploader, f.source, nil)
	f.archiver.backoff = time.Millisecond
	return f
}

func (f *fixture) job(t *testing.T, regID uuid.UUID) *queue.Job {
	body, err := json.Marshal(queue.CodeArchivePayload{RegistrationID: regID, FormID: f.reg.FormID})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeCodeArchive, Payload: body}
}

func TestProcessArchivesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.archiver.Process(ctx, f.job(t, f.reg.ID)))

	key := "codes/" + f.reg.FormID.String() + "/" + f.reg.ID.String() + ".png"
	require.Contains(t, f.uploader.objects, key)
	assert.Equal(t, []byte("\x89PNG"), f.uploader.objects[key][:4])

	stored, err := f.store.GetByID(ctx, f.reg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CodeObjectKey)
	assert.Equal(t, key, *stored.CodeObjectKey)

	// A second run is a no-op.
	f.uploader.err = errors.New("must not upload again")
	assert.NoError(t, f.archiver.Process(ctx, f.job(t, f.reg.ID)))
}

func TestProcessRejectsBadJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Error(t, f.archiver.Process(ctx, &queue.Job{Type: "other"}))
	assert.Error(t, f.archiver.Process(ctx, &queue.Job{Type: queue.JobTypeCodeArchive, Payload: []byte("{")}))
	assert.Error(t, f.archiver.Process(ctx, f.job(t, uuid.New())))
}

func TestRunRetriesFailedUploads(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = errors.New("s3 unavailable")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.archiver.Run(ctx)
		close(done)
	}()

	f.source.jobs <- f.job(t, f.reg.ID)
	require.Eventually(t, func() bool { return f.source.retries() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	stored, err := f.store.GetByID(context.Background(), f.reg.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CodeObjectKey)
}
