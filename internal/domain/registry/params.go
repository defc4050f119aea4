package registry

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// Params is the per-OpCode argument variant of an operation. The set of
// implementations is closed: only the types in this file satisfy it.
type Params interface {
	OpCode() OpCode
	check() error
}

type IssueParams struct {
	OwnerID   string          `json:"owner_id"`
	LogicMark string          `json:"logic_mark"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type BurnParams struct{}

type UpdateParams struct {
	Data json.RawMessage `json:"data"`
}

type TransferParams struct {
	From string `json:"from"`
	To   string `json:"to"`
	Memo string `json:"memo,omitempty"`
}

type HoldParams struct{}

type ReleaseParams struct{}

func (IssueParams) OpCode() OpCode    { return OpIssue }
func (BurnParams) OpCode() OpCode     { return OpBurn }
func (UpdateParams) OpCode() OpCode   { return OpUpdate }
func (TransferParams) OpCode() OpCode { return OpTransfer }
func (HoldParams) OpCode() OpCode     { return OpHold }
func (ReleaseParams) OpCode() OpCode  { return OpRelease }

func (p IssueParams) check() error {
	if strings.TrimSpace(p.OwnerID) == "" {
		return Errorf(CodeInvalidParamsShape, "issue params: owner_id is required")
	}
	return checkJSON("issue params: data", p.Data, true)
}

func (BurnParams) check() error { return nil }

func (p UpdateParams) check() error {
	return checkJSON("update params: data", p.Data, false)
}

func (p TransferParams) check() error {
	if strings.TrimSpace(p.From) == "" || strings.TrimSpace(p.To) == "" {
		return Errorf(CodeInvalidParamsShape, "transfer params: from and to are required")
	}
	return nil
}

func (HoldParams) check() error    { return nil }
func (ReleaseParams) check() error { return nil }

func checkJSON(what string, raw json.RawMessage, optional bool) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		if optional {
			return nil
		}
		return Errorf(CodeInvalidParamsShape, "%s is required", what)
	}
	if !json.Valid(raw) {
		return Errorf(CodeInvalidParamsShape, "%s is not valid JSON", what)
	}
	return nil
}

// CheckParams verifies that p is the variant belonging to code and that its
// required fields are present.
func CheckParams(code OpCode, p Params) error {
	if !code.Valid() {
		return Errorf(CodeUnknownOpCode, "unknown op code %d", int(code))
	}
	if p == nil {
		return Errorf(CodeInvalidParamsShape, "%s: params are required", code)
	}
	if p.OpCode() != code {
		return Errorf(CodeInvalidParamsShape, "%s: got params for %s", code, p.OpCode())
	}
	return p.check()
}

func EncodeParams(p Params) (datatypes.JSON, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, Wrap(CodeInvalidParamsShape, err, "encode params")
	}
	return datatypes.JSON(raw), nil
}

// DecodeParams parses raw into the variant for code. Unknown fields are
// rejected so a caller cannot smuggle another variant's arguments through.
func DecodeParams(code OpCode, raw []byte) (Params, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	var p Params
	switch code {
	case OpIssue:
		var v IssueParams
		if err := strictUnmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case OpBurn:
		var v BurnParams
		if err := strictUnmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case OpUpdate:
		var v UpdateParams
		if err := strictUnmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case OpTransfer:
		var v TransferParams
		if err := strictUnmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case OpHold:
		var v HoldParams
		if err := strictUnmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case OpRelease:
		var v ReleaseParams
		if err := strictUnmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, Errorf(CodeUnknownOpCode, "unknown op code %d", int(code))
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}

func strictUnmarshal(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return Wrap(CodeInvalidParamsShape, err, "decode params")
	}
	return nil
}
