package tracker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
	"Mansoor88-6/devpulse-agent/internal/platform"

	"go.uber.org/zap"
)

// CaptchaTask periodically asks the user to solve a small sum. Prompts run
// on their own goroutine and at most one is open at a time.
type CaptchaTask struct {
	gate     IntervalGate
	prompter platform.Prompter
	username string
	sink     EventSink
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	randInt func(n int) int
	clock   func() time.Time
}

func NewCaptchaTask(
	interval time.Duration,
	prompter platform.Prompter,
	username string,
	sink EventSink,
	logger *zap.Logger,
) *CaptchaTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &CaptchaTask{
		gate:     NewIntervalGate(interval),
		prompter: prompter,
		username: username,
		sink:     sink,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		randInt:  rand.IntN,
		clock:    time.Now,
	}
}

func (c *CaptchaTask) Name() string { return "captcha" }

func (c *CaptchaTask) Tick(now time.Time) {
	if !c.gate.Due(now) {
		return
	}
	if !c.running.CompareAndSwap(false, true) {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)
		c.challenge()
	}()
}

// Close dismisses any open prompt and waits for it to finish
func (c *CaptchaTask) Close(time.Time) {
	c.cancel()
	c.wg.Wait()
}

func (c *CaptchaTask) challenge() {
	a := c.randInt(20) + 1
	b := c.randInt(20) + 1
	op, correct := "+", a+b
	if c.randInt(2) == 1 {
		op, correct = "-", a-b
	}
	expr := fmt.Sprintf("%d %s %d", a, op, b)

	answer, err := c.prompter.AskInt(c.ctx, "Math Challenge", "Solve: "+expr+" = ?")
	switch {
	case errors.Is(err, platform.ErrInvalidInput):
		c.prompter.Notify(c.ctx, platform.NoticeError, "Please enter a valid integer.")
		return
	case err != nil:
		if !errors.Is(err, platform.ErrPromptCancelled) && c.ctx.Err() == nil {
			c.logger.Warn("Captcha prompt failed", zap.Error(err))
		}
		return
	}

	event := models.NewCaptchaEvent(c.username, expr, answer, correct, c.clock())
	c.sink.Push(event)
	c.logger.Info("Captcha answered",
		zap.String("expression", expr),
		zap.Bool("is_correct", *event.IsCorrect),
	)

	if *event.IsCorrect {
		c.prompter.Notify(c.ctx, platform.NoticeInfo, "Correct! Next challenge soon.")
	} else {
		c.prompter.Notify(c.ctx, platform.NoticeWarning, "Incorrect! Try again.")
	}
}
