package publisher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"listing-publisher/models"
)

// ContainerState tracks one media container on the client side.
type ContainerState string

const (
	StateCreated    ContainerState = "CREATED"
	StateProcessing ContainerState = "PROCESSING"
	StateFinished   ContainerState = "FINISHED"
	StateError      ContainerState = "ERROR"
	StateTimedOut   ContainerState = "TIMED_OUT"
)

// Terminal reports whether no further polling can change the state.
func (s ContainerState) Terminal() bool {
	return s == StateFinished || s == StateError || s == StateTimedOut
}

// Next is the container transition function. status is the remote status
// code from the latest poll; elapsed is the time since polling started.
// A finished or failed reply wins over an exhausted budget.
func Next(current ContainerState, status string, elapsed, budget time.Duration) ContainerState {
	if current.Terminal() {
		return current
	}
	switch status {
	case "FINISHED", "PUBLISHED":
		return StateFinished
	case "ERROR", "EXPIRED":
		return StateError
	}
	if elapsed >= budget {
		return StateTimedOut
	}
	return StateProcessing
}

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// waitForContainer polls containerID at a fixed interval until it reaches a
// terminal state.
func (p *Publisher) waitForContainer(ctx context.Context, containerID string) error {
	start := p.clock.Now()
	state := StateCreated
	query := url.Values{"fields": {"status_code,status"}}

	for polls := 1; ; polls++ {
		var reply statusResponse
		if err := p.graph.get(ctx, containerID, query, &reply); err != nil {
			return err
		}

		state = Next(state, reply.StatusCode, p.clock.Now().Sub(start), p.pollTimeout)
		switch state {
		case StateFinished:
			p.logger.Debug("[instagram] Container %s finished after %d poll(s)", containerID, polls)
			return nil
		case StateError:
			payload := reply.Status
			if payload == "" {
				payload = reply.StatusCode
			}
			return &models.ContainerError{ContainerID: containerID, Payload: payload}
		case StateTimedOut:
			return fmt.Errorf("%w: container %s not ready after %v (%d polls)",
				models.ErrContainerTimeout, containerID, p.pollTimeout, polls)
		}

		if err := p.clock.Sleep(ctx, p.pollInterval); err != nil {
			return fmt.Errorf("container %s: %w", containerID, err)
		}
	}
}
