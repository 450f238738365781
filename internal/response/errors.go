package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrProfileNotFound ErrCode = "EXAM_PROFILE_NOT_FOUND"

	// ─── Import sessions ───────────────────────────────────────────────
	ErrSessionNotFound    ErrCode = "IMPORT_SESSION_NOT_FOUND"
	ErrInvalidTransition  ErrCode = "INVALID_TRANSITION"
	ErrBlockingIssues     ErrCode = "BLOCKING_ISSUES"
	ErrNotOverridable     ErrCode = "ISSUE_NOT_OVERRIDABLE"
	ErrFileUnreadable     ErrCode = "FILE_UNREADABLE"
	ErrBookletConfig      ErrCode = "BOOKLET_CONFIG_INVALID"
	ErrDuplicateRole      ErrCode = "DUPLICATE_ROLE"
	ErrColumnOutOfRange   ErrCode = "COLUMN_OUT_OF_RANGE"
	ErrRowOutOfRange      ErrCode = "ROW_OUT_OF_RANGE"
	ErrStudentNotInRoster ErrCode = "STUDENT_NOT_IN_ROSTER"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal    ErrCode = "INTERNAL_ERROR"
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Doğrulama başarısız. Lütfen girdilerinizi kontrol edin."
	case ErrInvalidID:
		return "Geçersiz kimlik biçimi."
	case ErrInvalidPayload:
		return "İstek gövdesi geçersiz."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Kaynak bulunamadı."
	case ErrConflict:
		return "Kaynak zaten mevcut."
	case ErrProfileNotFound:
		return "Sınav profili bulunamadı."

	// ─── Import sessions ───────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Aktarım oturumu bulunamadı veya süresi doldu."
	case ErrInvalidTransition:
		return "Bu işlem oturumun mevcut durumunda yapılamaz."
	case ErrBlockingIssues:
		return "Engelleyici sorunlar çözülmeden aktarım tamamlanamaz."
	case ErrNotOverridable:
		return "Bu sorun türü onaylanarak geçilemez."
	case ErrFileUnreadable:
		return "Dosya okunamadı."
	case ErrBookletConfig:
		return "Kitapçık yapılandırması geçersiz."
	case ErrDuplicateRole:
		return "Aynı alan birden fazla sütuna atanamaz."
	case ErrColumnOutOfRange:
		return "Sütun numarası dosyada yok."
	case ErrRowOutOfRange:
		return "Satır numarası geçersiz."
	case ErrStudentNotInRoster:
		return "Öğrenci listede bulunamadı."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "Dosya yüklenmesi gerekli."
	case ErrUnsupportedFile:
		return "Dosya türü desteklenmiyor."
	case ErrFileTooLarge:
		return "Dosya boyutu sınırı aşıyor."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Çok fazla istek. Lütfen daha sonra tekrar deneyin."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Sunucu hatası oluştu."
	case ErrUnavailable:
		return "Servis şu anda kullanılamıyor."
	default:
		return "Beklenmeyen bir hata oluştu."
	}
}
