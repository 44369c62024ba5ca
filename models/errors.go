package models

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction       = errors.New("extraction failed")
	ErrInvalidURL       = fmt.Errorf("%w: unsupported listing url", ErrExtraction)
	ErrImageFetch       = errors.New("image fetch failed")
	ErrNoImages         = errors.New("no usable images")
	ErrCopyGeneration   = errors.New("copy generation failed")
	ErrPublishUpload    = errors.New("publish upload rejected")
	ErrContainer        = errors.New("container processing error")
	ErrContainerTimeout = errors.New("container timed out")
)

// ContainerError is returned when the remote reports ERROR for a container.
type ContainerError struct {
	ContainerID string
	Payload     string
}

func (e *ContainerError) Error() string {
	return fmt.Sprintf("container %s failed: %s", e.ContainerID, e.Payload)
}

func (e *ContainerError) Unwrap() error {
	return ErrContainer
}
