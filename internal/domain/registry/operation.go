package registry

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type OpCode int

const (
	OpNone     OpCode = 0
	OpIssue    OpCode = 1
	OpBurn     OpCode = 2
	OpUpdate   OpCode = 3
	OpTransfer OpCode = 4
	OpHold     OpCode = 5
	OpRelease  OpCode = 6
)

var opCodeNames = map[OpCode]string{
	OpIssue:    "ISSUE",
	OpBurn:     "BURN",
	OpUpdate:   "UPDATE",
	OpTransfer: "TRANSFER",
	OpHold:     "HOLD",
	OpRelease:  "RELEASE",
}

// OpCodes lists every supported mutation kind.
var OpCodes = []OpCode{OpIssue, OpBurn, OpUpdate, OpTransfer, OpHold, OpRelease}

func (c OpCode) String() string {
	if n, ok := opCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("OpCode(%d)", int(c))
}

func (c OpCode) Valid() bool {
	_, ok := opCodeNames[c]
	return ok
}

func (c OpCode) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, Errorf(CodeUnknownOpCode, "unknown op code %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *OpCode) UnmarshalText(b []byte) error {
	parsed, err := ParseOpCode(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func ParseOpCode(s string) (OpCode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for code, name := range opCodeNames {
		if name == s {
			return code, nil
		}
	}
	return OpNone, Errorf(CodeUnknownOpCode, "unknown op code %q", s)
}

type OpState int

const (
	OpInitialed OpState = 0
	OpPrepared  OpState = 1
	OpCommitted OpState = 2
	OpAborted   OpState = 11
	OpTimeout   OpState = 12
)

func (s OpState) String() string {
	switch s {
	case OpInitialed:
		return "INITIALED"
	case OpPrepared:
		return "PREPARED"
	case OpCommitted:
		return "COMMITTED"
	case OpAborted:
		return "ABORTED"
	case OpTimeout:
		return "TIMEOUT"
	default:
		return fmt.Sprintf("OpState(%d)", int(s))
	}
}

func (s OpState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OpState) UnmarshalText(b []byte) error {
	for _, c := range []OpState{OpInitialed, OpPrepared, OpCommitted, OpAborted, OpTimeout} {
		if c.String() == strings.ToUpper(string(b)) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown op state %q", string(b))
}

func (s OpState) Terminal() bool {
	return s == OpCommitted || s == OpAborted || s == OpTimeout
}

// CanTransitionOp reports whether an operation may move from -> to.
func CanTransitionOp(from, to OpState) bool {
	switch from {
	case OpInitialed:
		return to == OpPrepared
	case OpPrepared:
		return to == OpCommitted || to == OpAborted || to == OpTimeout
	default:
		return false
	}
}

// Operation is one entry in the idempotent mutation ledger. ID is the
// caller-supplied idempotency key.
type Operation struct {
	ID           string         `gorm:"column:id;type:char(24);primaryKey" json:"id"`
	AssetID      string         `gorm:"column:asset_id;type:char(24);not null;index" json:"asset_id"`
	Creator      string         `gorm:"column:creator;not null;index" json:"creator"`
	OpCode       OpCode         `gorm:"column:op_code;not null" json:"op_code"`
	Params       datatypes.JSON `gorm:"column:params" json:"params"`
	State        OpState        `gorm:"column:state;not null;index" json:"state"`
	ErrorCode    ErrorCode      `gorm:"column:error_code;not null;default:''" json:"error_code,omitempty"`
	ErrorMessage string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Operation) TableName() string { return "operations" }

// DecodedParams parses the stored params into the variant for the op code.
func (o *Operation) DecodedParams() (Params, error) {
	return DecodeParams(o.OpCode, o.Params)
}
