package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"product-studio-server/modules/common/apierr"
	"product-studio-server/modules/common/config"
)

// Policy - 고정 간격 재시도 정책
type Policy struct {
	Name       string
	MaxRetries int
	Delay      time.Duration
	// nil이면 모든 에러 재시도
	Retryable func(error) bool
	Logger    *zerolog.Logger
}

// UploadPolicy - 업로드는 어떤 에러든 재시도 (기본 2회, 1000ms)
func UploadPolicy(cfg *config.Config) Policy {
	return Policy{
		Name:       "upload",
		MaxRetries: cfg.UploadMaxRetries,
		Delay:      cfg.UploadRetryDelay,
	}
}

// ProcessPolicy - 처리는 network/gateway 에러만 재시도 (기본 2회, 3000ms)
func ProcessPolicy(cfg *config.Config) Policy {
	return Policy{
		Name:       "process",
		MaxRetries: cfg.ProcessMaxRetries,
		Delay:      cfg.ProcessRetryDelay,
		Retryable:  apierr.IsRetryable,
	}
}

// ProviderPolicy - vision/copy 등 보조 provider 호출용 (1회 재시도)
func ProviderPolicy(name string) Policy {
	return Policy{
		Name:       name,
		MaxRetries: 1,
		Delay:      time.Second,
		Retryable:  apierr.IsRetryable,
	}
}

// WithLogger - 재시도 로그를 남길 로거 지정
func (p Policy) WithLogger(l zerolog.Logger) Policy {
	p.Logger = &l
	return p
}

// Do - op를 최대 1+MaxRetries번 실행. 재시도 불가 에러는 즉시 반환
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn().
				Err(err).
				Str("policy", p.Name).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("🔄 retrying after failure")
		}
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(maxRetries+1)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		// Permanent 래핑은 backoff가 벗겨서 돌려주지만 혹시 남아 있으면 원본으로
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return v, err
	}
	return v, nil
}
