package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/canvaslabs/canvas/internal/domain"
)

const TypePrewarmVariant = "image:prewarm"

// PrewarmPayload asks the background worker to compute one variant of an
// ingested original so the artifact cache is hot before the first fetch.
// Payload bytes are deterministic per (hash, params): asynq task
// uniqueness hashes the payload, and a timestamp or random field here would
// break the dedupe.
type PrewarmPayload struct {
	Hash   string                 `json:"hash"`
	Params domain.TransformParams `json:"params"`
}

func NewPrewarmTask(payload PrewarmPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal prewarm payload: %w", err)
	}
	return asynq.NewTask(TypePrewarmVariant, body), nil
}

func ParsePrewarmPayload(task *asynq.Task) (PrewarmPayload, error) {
	var payload PrewarmPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PrewarmPayload{}, fmt.Errorf("unmarshal prewarm payload: %w", err)
	}
	return payload, nil
}

// ParseVariants turns a configured list like "640x480" or "160x160@70" into
// normalized parameter sets. Malformed entries are skipped with an error
// list so one bad entry does not disable pre-warming.
func ParseVariants(specs []string) ([]domain.TransformParams, []error) {
	var (
		out  []domain.TransformParams
		errs []error
	)
	for _, spec := range specs {
		params, err := parseVariant(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, params)
	}
	return out, errs
}

func parseVariant(spec string) (domain.TransformParams, error) {
	params := domain.DefaultParams()

	dims := spec
	if at := strings.IndexByte(spec, '@'); at >= 0 {
		dims = spec[:at]
		quality, err := strconv.Atoi(spec[at+1:])
		if err != nil {
			return domain.TransformParams{}, fmt.Errorf("variant %q: bad quality", spec)
		}
		params.Quality = quality
	}

	parts := strings.SplitN(strings.ToLower(dims), "x", 2)
	if len(parts) != 2 {
		return domain.TransformParams{}, fmt.Errorf("variant %q: expected WIDTHxHEIGHT", spec)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return domain.TransformParams{}, fmt.Errorf("variant %q: bad width", spec)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.TransformParams{}, fmt.Errorf("variant %q: bad height", spec)
	}
	params.Width = width
	params.Height = height

	if err := params.Validate(); err != nil {
		return domain.TransformParams{}, fmt.Errorf("variant %q: %w", spec, err)
	}
	return params, nil
}
