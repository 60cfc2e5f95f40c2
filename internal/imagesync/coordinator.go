package imagesync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
)

// #region types

// Job asks for a new image for one already-appended record.
type Job struct {
	RecordID    string
	Persona     scenario.Persona
	Environment scenario.Environment
	Visual      scenario.Visual
	// Fallback is the image the record gets when generation fails.
	Fallback string
}

// Generator produces an image reference (URL or data URI) from a visual prompt.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Patcher applies the single-field image patch to the record a job targets.
type Patcher interface {
	PatchImage(recordID, image string) error
}

// PatcherFunc adapts a function to Patcher.
type PatcherFunc func(recordID, image string) error

func (f PatcherFunc) PatchImage(recordID, image string) error { return f(recordID, image) }

// PromptBuilder turns a job into the prompt sent to the image backend.
type PromptBuilder func(Job) string

// Result is emitted after each job resolves.
type Result struct {
	RecordID string
	Image    string
	Fallback bool // generation failed and the fallback image was used
	Err      error
	Duration time.Duration
}

// Config controls the worker pool.
type Config struct {
	Workers   int           // background worker goroutines, default 1
	QueueSize int           // buffered channel capacity, default 16
	Timeout   time.Duration // per-job generation timeout, 0 = none
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   1,
		QueueSize: 16,
	}
}

// #endregion types

// #region coordinator

// Coordinator runs image generation off the turn path. Dispatch never blocks; a
// worker generates the image and patches exactly the record the job names, falling
// back to the job's previous image when generation fails. Each record id is
// dispatched at most once.
type Coordinator struct {
	gen     Generator
	patcher Patcher
	build   PromptBuilder
	config  Config

	mu         sync.Mutex
	queue      chan Job
	dispatched map[string]bool
	stopped    bool
	wg         sync.WaitGroup

	// OnResult is called from the worker goroutine after each job. May be nil.
	OnResult func(Result)
}

// NewCoordinator creates and starts the worker pool. Call Stop to drain and shut down.
func NewCoordinator(gen Generator, patcher Patcher, config Config, build PromptBuilder) *Coordinator {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 16
	}
	if build == nil {
		build = DefaultPromptBuilder
	}

	c := &Coordinator{
		gen:        gen,
		patcher:    patcher,
		build:      build,
		config:     config,
		queue:      make(chan Job, config.QueueSize),
		dispatched: make(map[string]bool),
	}
	for i := 0; i < config.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// Dispatch enqueues a job. It returns false when the record was already dispatched,
// the queue is full, or the coordinator is stopped.
func (c *Coordinator) Dispatch(job Job) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || job.RecordID == "" || c.dispatched[job.RecordID] {
		return false
	}
	select {
	case c.queue <- job:
		c.dispatched[job.RecordID] = true
		return true
	default:
		log.Warn().Str("record_id", job.RecordID).Msg("[IMAGE] queue full, dropping job")
		return false
	}
}

// Pending returns the number of jobs waiting in the queue.
func (c *Coordinator) Pending() int {
	return len(c.queue)
}

// Stop drains queued jobs and waits for the workers to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.queue)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for job := range c.queue {
		c.process(job)
	}
}

func (c *Coordinator) process(job Job) {
	start := time.Now()

	ctx := context.Background()
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	res := Result{RecordID: job.RecordID}
	image, err := c.gen.GenerateImage(ctx, c.build(job))
	if err != nil || image == "" {
		res.Err = err
		res.Fallback = true
		image = job.Fallback
		log.Warn().Err(err).Str("record_id", job.RecordID).Msg("[IMAGE] generation failed, carrying previous image forward")
	}
	res.Image = image

	if perr := c.patcher.PatchImage(job.RecordID, image); perr != nil {
		log.Error().Err(perr).Str("record_id", job.RecordID).Msg("[IMAGE] patch failed")
		if res.Err == nil {
			res.Err = perr
		}
	}
	res.Duration = time.Since(start)

	if c.OnResult != nil {
		c.OnResult(res)
	}
}

// #endregion coordinator

// #region prompt

// DefaultPromptBuilder joins the persona appearance, the visual state and the setting.
func DefaultPromptBuilder(job Job) string {
	parts := make([]string, 0, 4)
	if a := strings.TrimSpace(job.Persona.Appearance); a != "" {
		parts = append(parts, a)
	}
	if d := strings.TrimSpace(job.Visual.Description); d != "" {
		parts = append(parts, d)
	}
	if p := strings.TrimSpace(job.Visual.Pose); p != "" {
		parts = append(parts, "pose: "+p)
	}
	if env := job.Environment.Label(); env != "" {
		parts = append(parts, "setting: "+env)
	}
	return strings.Join(parts, ". ")
}

// #endregion prompt
