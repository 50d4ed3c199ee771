package reconcile

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer separa las llamadas al provider para no pisar su rate limit global
// por credencial de bot. Wait se invoca ENTRE usuarios, nunca antes del
// primero ni después del último.
type Pacer interface {
	Wait(ctx context.Context) error
}

// DelayPacer espera un intervalo fijo entre llamadas.
type DelayPacer struct {
	d time.Duration
}

func NewDelayPacer(d time.Duration) *DelayPacer {
	if d <= 0 {
		d = time.Second
	}
	return &DelayPacer{d: d}
}

func (p *DelayPacer) Wait(ctx context.Context) error {
	t := time.NewTimer(p.d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BucketPacer usa un token bucket ajustado al techo documentado del provider.
type BucketPacer struct {
	lim *rate.Limiter
}

func NewBucketPacer(perSecond float64, burst int) *BucketPacer {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &BucketPacer{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (p *BucketPacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}
