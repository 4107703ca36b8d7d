package model

// Severity is the visual weight of a notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a transient status notification shown to the player.
type Notice struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// NoticeCode identifies a notice in the catalog below.
type NoticeCode string

const (
	NoticeGenericFailure     NoticeCode = "GENERIC_FAILURE"
	NoticeWrongAnswer        NoticeCode = "WRONG_ANSWER"
	NoticeCaptureUnavailable NoticeCode = "CAPTURE_UNAVAILABLE"
)

// NoticeFor returns the player-facing notice for a code.
func NoticeFor(code NoticeCode) Notice {
	switch code {
	case NoticeWrongAnswer:
		return Notice{
			Title:       "틀렸습니다!",
			Description: "정답과 일치하지 않습니다. 다시 시도해 보세요.",
			Severity:    SeverityError,
		}
	case NoticeCaptureUnavailable:
		return Notice{
			Title:       "카메라를 사용할 수 없어요.",
			Description: "카메라를 확인한 뒤 다시 시도해주세요.",
			Severity:    SeverityWarning,
		}
	default:
		return Notice{
			Title:       "문제가 발생했어요.",
			Description: "다시 시도해주세요.",
			Severity:    SeverityError,
		}
	}
}
