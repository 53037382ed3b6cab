package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted возвращается, когда попытки закончились, а терминальное состояние не достигнуто
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy ограниченный повтор с фиксированной задержкой.
// Sleep подменяется в тестах, чтобы не ждать по-настоящему.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(time.Duration)
}

// Do вызывает fn до MaxAttempts раз. fn возвращает done=true при достижении
// терминального состояния. Ошибки fn не прерывают цикл — последняя ошибка
// присоединяется к ErrExhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) (bool, error)) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := fn(ctx)
		if done {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		if attempt < p.MaxAttempts-1 {
			sleep(p.Delay)
		}
	}

	if lastErr != nil {
		return errors.Join(ErrExhausted, lastErr)
	}
	return ErrExhausted
}
