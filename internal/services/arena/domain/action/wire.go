package action

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "github.com/louisbranch/proving.grounds/internal/platform/errors"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/field"
	"github.com/louisbranch/proving.grounds/internal/services/arena/domain/keys"
)

//go:embed action.schema.json
var schemaSource string

const schemaURL = "https://proving.grounds/schemas/action.schema.json"

var signedSchema = mustCompile(schemaURL)

func mustCompile(url string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaSource)); err != nil {
		panic(err)
	}
	return c.MustCompile(url)
}

type wireAction struct {
	Nonce   string `json:"nonce"`
	Type    string `json:"actionType"`
	Params  string `json:"actionParams"`
	PieceID string `json:"piece"`
}

type wireSigned struct {
	Action    Action         `json:"action"`
	Signature keys.Signature `json:"signature"`
}

// MarshalJSON encodes every field as a decimal string.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{
		Nonce:   strconv.FormatUint(a.Nonce, 10),
		Type:    strconv.FormatUint(uint64(a.Type), 10),
		Params:  field.Decimal(a.Params),
		PieceID: strconv.FormatUint(a.Piece, 10),
	})
}

// UnmarshalJSON decodes an action encoded by MarshalJSON. It does not
// validate against the schema; use DecodeSigned for untrusted input.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	nonce, err := strconv.ParseUint(w.Nonce, 10, 64)
	if err != nil {
		return fmt.Errorf("action nonce: %w", err)
	}
	t, err := strconv.ParseUint(w.Type, 10, 8)
	if err != nil || !Type(t).Valid() {
		return fmt.Errorf("action type %q is not 0, 1 or 2", w.Type)
	}
	params, err := field.ParseDecimal(w.Params)
	if err != nil {
		return fmt.Errorf("action params: %w", err)
	}
	pieceID, err := strconv.ParseUint(w.PieceID, 10, 64)
	if err != nil {
		return fmt.Errorf("action piece: %w", err)
	}
	*a = Action{Nonce: nonce, Type: Type(t), Params: params, Piece: pieceID}
	return nil
}

// MarshalJSON encodes the signed envelope.
func (s Signed) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSigned(s))
}

// UnmarshalJSON decodes a signed envelope.
func (s *Signed) UnmarshalJSON(data []byte) error {
	var w wireSigned
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Signed(w)
	return nil
}

// DecodeSigned validates an untrusted signed envelope and parses it.
func DecodeSigned(data []byte) (Signed, error) {
	if err := validate(signedSchema, data); err != nil {
		return Signed{}, err
	}
	var s Signed
	if err := json.Unmarshal(data, &s); err != nil {
		return Signed{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "decode signed action", err)
	}
	return s, nil
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "parse action JSON", err)
	}
	if err := schema.Validate(doc); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "action JSON does not match schema", err)
	}
	return nil
}
