package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/baechuer/pension-service/internal/domain"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON request body into dst.
// It rejects multiple JSON values and bodies over MaxBodyBytes.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.ErrInvalidJSON(errors.New("empty body"))
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes+1))

	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(err)
	}
	if dec.InputOffset() > MaxBodyBytes {
		return domain.ErrInvalidJSON(errors.New("body too large"))
	}

	// Disallow trailing data: {}{}
	if err := dec.Decode(&struct{}{}); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrInvalidJSON(err)
	}
	return domain.ErrInvalidJSON(errors.New("multiple JSON values"))
}
