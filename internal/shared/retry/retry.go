package retry

import (
	"context"
	"math"
	"time"
)

// Func é a operação repetida; attempt começa em 1
type Func func(attempt int) error

// Options define a política de tentativas com backoff exponencial
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration // zero = sem teto
	Multiplier      float64
	// OnRetry é chamado antes de cada espera, com a tentativa que falhou
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Do executa fn até ter sucesso ou esgotar MaxAttempts.
// Espera InitialInterval * Multiplier^(attempt-1) entre tentativas.
// Cancelamento do contexto durante a espera retorna o último erro junto de ctx.Err().
func Do(ctx context.Context, fn Func, opts Options) error {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		// Não espera após a última tentativa
		if attempt == opts.MaxAttempts {
			break
		}

		wait := Backoff(attempt, opts)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, wait, err)
		}
		if err := Sleep(ctx, wait); err != nil {
			return &CanceledError{Last: lastErr, Cause: err}
		}
	}
	return lastErr
}

// Backoff retorna o intervalo após a tentativa informada
func Backoff(attempt int, opts Options) time.Duration {
	mult := opts.Multiplier
	if mult <= 0 {
		mult = 1
	}
	if attempt < 1 {
		attempt = 1
	}
	interval := float64(opts.InitialInterval) * math.Pow(mult, float64(attempt-1))
	if opts.MaxInterval > 0 && interval > float64(opts.MaxInterval) {
		return opts.MaxInterval
	}
	return time.Duration(interval)
}

// Sleep espera d ou até o cancelamento do contexto
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CanceledError indica que o contexto foi cancelado entre tentativas
type CanceledError struct {
	Last  error
	Cause error
}

func (e *CanceledError) Error() string {
	return "retry canceled: " + e.Cause.Error() + " (last error: " + e.Last.Error() + ")"
}

func (e *CanceledError) Unwrap() []error { return []error{e.Cause, e.Last} }
