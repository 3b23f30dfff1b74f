package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"conti/internal/core"
)

const maxBodyBytes = 64 << 10

var (
	errBodyTooLarge      = errors.New("request body too large")
	errUnsupportedType   = errors.New("content type must be application/json")
	errInvalidRoomID     = errors.New("invalid room id")
	errTrailingJSONValue = errors.New("request body must contain a single JSON object")
)

// decodeError is a malformed request body.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}

// expenseRequest is the POST body for a new expense. Amount is either a
// JSON integer in minor units or a decimal string in major units. The payer
// is read from "payer", falling back to "payer_email".
type expenseRequest struct {
	Title        string          `json:"title"`
	Amount       json.RawMessage `json:"amount"`
	Payer        string          `json:"payer"`
	PayerEmail   string          `json:"payer_email"`
	Participants []string        `json:"participants"`
}

func (req expenseRequest) payer() string {
	if p := sanitizeInput(req.Payer); p != "" {
		return p
	}
	return sanitizeInput(req.PayerEmail)
}

// toNewExpense converts the request, parsing string amounts with exponent
// decimal places.
func (req expenseRequest) toNewExpense(exponent int32) (core.NewExpense, error) {
	amount, err := parseAmountField(req.Amount, exponent)
	if err != nil {
		return core.NewExpense{}, &core.FieldError{Field: "amount", Err: err}
	}
	participants := make([]string, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, sanitizeInput(p))
	}
	return core.NewExpense{
		Title:        sanitizeInput(req.Title),
		Amount:       amount,
		PayerEmail:   req.payer(),
		Participants: participants,
	}, nil
}

func parseAmountField(raw json.RawMessage, exponent int32) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, core.ErrInvalidAmount
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, core.ErrInvalidAmount
		}
		return core.ParseAmount(s, exponent)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, core.ErrInvalidAmount
	}
	return n, nil
}

// decodeJSON reads exactly one JSON object of at most maxBodyBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return errUnsupportedType
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return &decodeError{errors.New("request body is empty")}
		default:
			return &decodeError{fmt.Errorf("invalid JSON body: %w", err)}
		}
	}
	if dec.More() {
		return &decodeError{errTrailingJSONValue}
	}
	return nil
}

// roomIDFromRequest returns the validated {room_id} path variable.
func roomIDFromRequest(r *http.Request) (string, error) {
	id := mux.Vars(r)["room_id"]
	if id == "" || len(id) > 64 {
		return "", errInvalidRoomID
	}
	for _, c := range id {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return "", errInvalidRoomID
		}
	}
	return id, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
