package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pavelanni/selfcheck/internal/model"
)

// JSONRenderer writes the submission snapshot as indented JSON.
type JSONRenderer struct{}

func (JSONRenderer) ContentType() string { return "application/json" }
func (JSONRenderer) Extension() string   { return ".json" }

func (JSONRenderer) Render(_ context.Context, w io.Writer, sub model.Submission) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sub)
}
