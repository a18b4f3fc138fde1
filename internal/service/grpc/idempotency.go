package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	idempotencyKeyHeader = "idempotency-key"
	idempotencyTTL       = domain.DefaultIdempotencyTTL
)

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler не более одного раза на пару (operation, idempotency-key).
// Без ключа в metadata запрос обрабатывается как обычно. handler возвращает доменные
// ошибки: бизнес-отказ закрепляется за ключом, а сбой хранилища или отмена
// освобождают ключ, чтобы клиент мог повторить запрос с тем же ключом.
func withIdempotency[T any](
	s *StorefrontService,
	ctx context.Context,
	operation string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	idemKey, ok := readIdempotencyKey(ctx)
	if s.idemRepo == nil || !ok {
		resp, err := handler(ctx)
		return resp, toStatus(err)
	}

	scope, err := domain.NewIdempotencyScope(operation, idemKey)
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Warn("invalid idempotency scope")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
	reqHash, err := buildIdempotencyRequestHash(operation, req)
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idemRepo.CreateProcessing(ctx, scope, reqHash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		return replayIdempotency[T](s, err, record)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		st := toStatus(runErr)
		if domain.CacheableFailure(runErr) {
			s.cacheIdempotencyFailure(ctx, scope, st)
		} else {
			s.releaseIdempotencyKey(ctx, scope, runErr)
		}
		return nil, st
	}

	if cacheErr := s.cacheIdempotencySuccess(ctx, scope, resp); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("idempotency_key", scope.String()).Warn("failed to store idempotent success response")
	}

	return resp, nil
}

func replayIdempotency[T any](s *StorefrontService, createErr error, record domain.IdempotencyRecord) (*T, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 {
				return nil, status.Error(codes.Internal, "idempotency cache is empty")
			}
			resp := new(T)
			if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
				s.logger.WithError(err).WithField("idempotency_key", record.Scope.String()).Warn("failed to decode cached idempotency response")
				return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
			}
			return resp, nil
		case domain.IdempotencyStatusProcessing:
			return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
		case domain.IdempotencyStatusFailed:
			return nil, decodeIdempotencyFailure(record)
		default:
			return nil, status.Error(codes.Internal, "unknown idempotency record status")
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return nil, status.Error(codes.Unavailable, "failed to initialize idempotency request")
	}
}

// releaseIdempotencyKey снимает ключ после временного сбоя. Если снять не удалось,
// запись остаётся в processing до TTL, и повтор получит Aborted.
func (s *StorefrontService) releaseIdempotencyKey(ctx context.Context, scope domain.IdempotencyScope, cause error) {
	logger := s.logger.WithField("idempotency_key", scope.String())
	if err := s.idemRepo.Delete(context.WithoutCancel(ctx), scope); err != nil {
		logger.WithError(err).Warn("failed to release idempotency key after transient failure")
		return
	}
	logger.WithError(cause).Debug("idempotency key released after transient failure")
}

func (s *StorefrontService) cacheIdempotencySuccess(ctx context.Context, scope domain.IdempotencyScope, resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.idemRepo.MarkDone(context.WithoutCancel(ctx), scope, data, int(codes.OK))
}

func (s *StorefrontService) cacheIdempotencyFailure(ctx context.Context, scope domain.IdempotencyScope, statusErr error) {
	st := status.Convert(statusErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload, err := json.Marshal(idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", scope.String()).Warn("failed to encode idempotency failure payload")
		payload = nil
	}

	if err := s.idemRepo.MarkFailed(context.WithoutCancel(ctx), scope, payload, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", scope.String()).Warn("failed to store idempotency failure response")
	}
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCode(int64(payload.Code)); ok {
				if code == codes.OK {
					code = codes.Internal
				}
				if payload.Message == "" {
					payload.Message = "previous request with the same idempotency key failed"
				}
				return status.Error(code, payload.Message)
			}
		}
	}

	if record.StatusCode > 0 {
		if code, ok := grpcCode(int64(record.StatusCode)); ok && code != codes.OK {
			return status.Error(code, "previous request with the same idempotency key failed")
		}
	}

	return status.Error(codes.Internal, "previous request with the same idempotency key failed")
}

func grpcCode(value int64) (codes.Code, bool) {
	if value < int64(codes.OK) || value > int64(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

func readIdempotencyKey(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	values := md.Get(idempotencyKeyHeader)
	if len(values) == 0 {
		return "", false
	}
	key := strings.TrimSpace(values[0])
	return key, key != ""
}

func buildIdempotencyRequestHash(operation string, req any) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}

	// encoding/json сортирует ключи map и сохраняет порядок полей структур, поэтому хэш детерминирован.
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(operation)+1+len(data))
	payload = append(payload, operation...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
