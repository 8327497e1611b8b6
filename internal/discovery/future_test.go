// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFuture_WaitReturnsResult(t *testing.T) {
	boom := errors.New("boom")
	f := goFuture(func() error { return boom })
	assert.ErrorIs(t, f.Wait(context.Background()), boom)
	assert.NoError(t, settled(nil).Wait(context.Background()))
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	f := goFuture(func() error {
		<-release
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)

	close(release)
	<-f.Done()
}

func TestSettleAll_IgnoresErrors(t *testing.T) {
	futures := []*Future{
		settled(errors.New("first")),
		goFuture(func() error { return nil }),
		goFuture(func() error { return errors.New("third") }),
	}
	settleAll(futures)
	for _, f := range futures {
		select {
		case <-f.Done():
		default:
			t.Fatal("settleAll returned before every future settled")
		}
	}
}
