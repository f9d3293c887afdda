package domain

// Errors
var (
	ErrInvalidPiece      = errf("invalid piece")
	ErrEmptyField        = errf("field has no cells")
	ErrRaggedField       = errf("field rows differ in width")
	// 입력 계약 위반: 레코드 단위 거절이 아니라 실행 전체를 중단해야 함
	ErrContractViolation = errf("input contract violation")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }
