package service

import (
	"context"

	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// PassResult summarizes one scheduler pass.
type PassResult struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

// retryTransient runs fn up to 1+retries times while it fails with a
// transient store error.
func retryTransient(ctx context.Context, retries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = fn()
		if err == nil || !apperrors.IsTransient(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
