package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAction  ErrCode = "INVALID_ACTION"
	ErrFrameTooLarge  ErrCode = "FRAME_TOO_LARGE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrSessionClosed   ErrCode = "SESSION_CLOSED"
	ErrSessionAttached ErrCode = "SESSION_ALREADY_ATTACHED"

	// ─── Game flow ─────────────────────────────────────────────────────
	ErrBusy               ErrCode = "BUSY"
	ErrInvalidPhase       ErrCode = "INVALID_PHASE"
	ErrStaleVerdict       ErrCode = "STALE_VERDICT"
	ErrCaptureUnavailable ErrCode = "CAPTURE_UNAVAILABLE"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream ErrCode = "UPSTREAM_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "입력값을 확인해주세요."
	case ErrInvalidID:
		return "잘못된 세션 ID입니다."
	case ErrInvalidPayload:
		return "요청 형식이 올바르지 않습니다."
	case ErrInvalidAction:
		return "알 수 없는 동작입니다."
	case ErrFrameTooLarge:
		return "이미지 크기가 너무 큽니다."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "요청한 리소스를 찾을 수 없습니다."
	case ErrSessionNotFound:
		return "게임 세션을 찾을 수 없습니다."
	case ErrSessionClosed:
		return "이미 종료된 게임입니다."
	case ErrSessionAttached:
		return "다른 화면에서 이미 게임이 진행 중입니다."

	// ─── Game flow ─────────────────────────────────────────────────────
	case ErrBusy:
		return "이전 요청을 처리하고 있어요. 잠시 후 다시 시도해주세요."
	case ErrInvalidPhase:
		return "지금은 할 수 없는 동작입니다."
	case ErrStaleVerdict:
		return "이미 지난 문제에 대한 결과입니다."
	case ErrCaptureUnavailable:
		return "카메라를 사용할 수 없어요."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstream:
		return "문제가 발생했어요. 다시 시도해주세요."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "서버 내부 오류가 발생했습니다."
	default:
		return "알 수 없는 오류가 발생했습니다."
	}
}
