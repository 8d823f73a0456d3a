package response

// ErrCode is a typed error code enum for consistent bridge API error
// identification.
type ErrCode string

const (
	// ─── Bridge access ─────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"
	ErrUnknownOption    ErrCode = "UNKNOWN_OPTION"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Token bridge diperlukan."
	case ErrTokenInvalid:
		return "Token bridge tidak valid."
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrSessionNotActive:
		return "Sesi ujian tidak sedang berlangsung."
	case ErrUnknownQuestion:
		return "Pertanyaan tidak ditemukan pada ujian ini."
	case ErrUnknownOption:
		return "Pilihan jawaban tidak dikenal."
	case ErrNoQuestions:
		return "Ujian ini tidak memiliki pertanyaan."
	case ErrInternal:
		return "Terjadi kesalahan internal pada agen ujian."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
