package controllers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ValidateRequiredFields checks that required configuration fields are set
func ValidateRequiredFields(fields map[string]string) error {
	for fieldName, fieldValue := range fields {
		if fieldValue == "" {
			return fmt.Errorf("%s must be set", fieldName)
		}
	}
	return nil
}

// PeriodicTask represents a periodic task configuration
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Task     func() error
	// RunImmediately runs the task once before the first tick.
	RunImmediately bool
}

// RunPeriodicTask runs a task periodically until context is cancelled
func RunPeriodicTask(ctx context.Context, task PeriodicTask, logger *zap.SugaredLogger) {
	logger.Infof("Starting periodic task: %s (interval: %v)", task.Name, task.Interval)

	if task.RunImmediately {
		if err := task.Task(); err != nil {
			logger.Errorf("Error in periodic task %s: %v", task.Name, err)
		}
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := task.Task(); err != nil {
				logger.Errorf("Error in periodic task %s: %v", task.Name, err)
			}
		case <-ctx.Done():
			logger.Infof("Stopping periodic task: %s", task.Name)
			return
		}
	}
}
