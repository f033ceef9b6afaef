package auth_test

import "time"

const (
	eventuallyTimeout = 2 * time.Second
	tick              = 5 * time.Millisecond
)
