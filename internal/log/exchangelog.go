package log

import (
	"fmt"
	"sync"
	"time"
)

// The exchange log buffer is separate from the main log
var exchangeLogBuffer *LogBuffer
var exchangeLogBufferOnce sync.Once

// GetExchangeLogBuffer returns the exchange log buffer, creating it if necessary
func GetExchangeLogBuffer() *LogBuffer {
	exchangeLogBufferOnce.Do(func() {
		exchangeLogBuffer = NewLogBuffer(1000) // Keep last 1000 exchanges
	})
	return exchangeLogBuffer
}

// LogExchange records one inbound command exchange handled by the engine
func LogExchange(remoteAddr string, command any, status string, duration time.Duration, err error) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   fmt.Sprintf("%s %v %s %v", remoteAddr, command, status, duration),
		Fields: map[string]any{
			"remote_addr": remoteAddr,
			"command":     command,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
		},
	}

	if err != nil {
		entry.Level = "error"
		entry.Fields["error"] = err.Error()
	}

	GetExchangeLogBuffer().AddEntry(entry)
}
