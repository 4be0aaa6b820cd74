package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/controller"
	"spamcheck-backend/internal/models"
)

// Sessions resolves a session to its controller without creating one.
type Sessions interface {
	Lookup(sessionID uuid.UUID) (*controller.Controller, bool)
}

// Pool runs queued submissions against the prediction endpoint and hands
// each outcome back to the session's controller.
type Pool struct {
	queue       Queue
	sessions    Sessions
	predictor   controller.Predictor
	workerCount int
	popTimeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(queue Queue, sessions Sessions, predictor controller.Predictor, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:       queue,
		sessions:    sessions,
		predictor:   predictor,
		workerCount: workerCount,
		popTimeout:  5 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Infof("Started %d worker goroutines", p.workerCount)
}

// Stop signals the workers and waits for them to finish their current job.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Enqueue schedules the controller's current ticket for a worker.
func (p *Pool) Enqueue(ctx context.Context, sessionID uuid.UUID, sequence int64) error {
	job := models.PredictionJob{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Sequence:   sequence,
		EnqueuedAt: time.Now(),
	}
	if err := p.queue.Push(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			log.Debugf("Worker %d shutting down", id)
			return
		default:
		}

		job, err := p.queue.Pop(p.ctx, p.popTimeout)
		if err != nil {
			if p.ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warnf("Worker %d: failed to pop job", id)
			// Back off so a broken queue does not spin.
			select {
			case <-p.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue // Timeout, retry
		}

		p.process(id, job)
	}
}

func (p *Pool) process(id int, job *models.PredictionJob) {
	fields := log.Fields{
		"worker":     id,
		"job_id":     job.ID,
		"session_id": job.SessionID,
		"sequence":   job.Sequence,
	}

	ctrl, ok := p.sessions.Lookup(job.SessionID)
	if !ok {
		log.WithFields(fields).Debug("dropping job for unknown session")
		return
	}

	ticket, ok := ctrl.Ticket(job.Sequence)
	if !ok {
		log.WithFields(fields).Debug("dropping superseded job")
		return
	}

	log.WithFields(fields).Debug("processing job")

	result, err := p.predictor.Predict(ticket.Context(), ticket.Text)
	if _, accepted := ctrl.Complete(ticket, result, err); !accepted {
		log.WithFields(fields).Debug("result arrived after a newer submission")
	}
}
