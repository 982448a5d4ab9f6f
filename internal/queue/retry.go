package queue

import "time"

// RetryPolicy bounds redelivery of failed jobs with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    5 * time.Minute,
	}
}

// Next decides what happens after a failed delivery of job. When retry is
// true the returned job carries the incremented attempt count and should be
// redelivered after delay; otherwise it belongs in the dead-letter store.
func (p RetryPolicy) Next(job Job) (next Job, delay time.Duration, retry bool) {
	next = job
	next.Attempt = job.Attempt + 1
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if next.Attempt >= maxAttempts {
		return next, 0, false
	}
	return next, p.Backoff(next.Attempt), true
}

// Backoff returns BaseDelay * 2^(failures-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(failures int) time.Duration {
	if failures < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < failures; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
