package protocol

import "time"

type Config struct {
	// RequestTimeout bounds the wait for a response once a request is written.
	RequestTimeout time.Duration

	// TransferTimeout replaces RequestTimeout for multi-frame uploads.
	TransferTimeout time.Duration

	// FlowControlPause is the longest the sender stays paused after the device
	// reports it is busy without a following "ready". Non-positive durations fall
	// back to the defaults so no request waits forever.
	FlowControlPause time.Duration

	// AbandonedKeys is how many timed-out or cancelled correlation keys are
	// remembered so their late responses are dropped quietly.
	AbandonedKeys int

	// QueueLimit caps requests waiting to be sent. Zero means no limit.
	QueueLimit int
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout:   5 * time.Second,
		TransferTimeout:  30 * time.Second,
		FlowControlPause: 2 * time.Second,
		AbandonedKeys:    64,
		QueueLimit:       256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.TransferTimeout <= 0 {
		c.TransferTimeout = def.TransferTimeout
	}
	if c.FlowControlPause <= 0 {
		c.FlowControlPause = def.FlowControlPause
	}
	return c
}
