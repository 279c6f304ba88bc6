package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/utils"
)

//go:embed prompts/extract_jobs.md
var extractPromptTemplate string

const defaultMaxLogLength = 200

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Extractor turns careers page text into job records.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Extractor = (*Extractor)(nil)

func NewExtractor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// ExtractJobs returns every posting found in pageText. Output that is not valid
// JSON yields ai.ErrUnparseable.
func (e *Extractor) ExtractJobs(ctx context.Context, pageText string) ([]ai.JobRecord, error) {
	prompt := strings.ReplaceAll(extractPromptTemplate, "{{PAGE_TEXT}}", pageText)

	e.logger.Debug("gemini extract jobs request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(pageText, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini extract jobs response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return parseJobs(raw)
}

func parseJobs(raw string) ([]ai.JobRecord, error) {
	var data any
	if err := json.Unmarshal([]byte(ai.ExtractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrUnparseable, err)
	}

	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("%w: unexpected %T at top level", ai.ErrUnparseable, data)
	}

	jobs := make([]ai.JobRecord, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		job, err := decodeJob(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: job %d: %v", ai.ErrUnparseable, i, err)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func decodeJob(fields map[string]any) (ai.JobRecord, error) {
	var job ai.JobRecord

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncType(jobFieldHook),
		Result:     &job,
	})
	if err != nil {
		return ai.JobRecord{}, err
	}
	if err := decoder.Decode(fields); err != nil {
		return ai.JobRecord{}, err
	}

	if job.Skills == nil {
		job.Skills = []string{}
	}
	if job.Raw == nil {
		job.Raw = map[string]any{}
	}
	return job, nil
}

var stringSliceType = reflect.TypeOf([]string{})

// jobFieldHook accepts loosely typed model output: any scalar or list for text
// fields and a single string for skills.
func jobFieldHook(from, to reflect.Type, data any) (any, error) {
	switch {
	case to == stringSliceType:
		return ai.CoerceStrings(data), nil
	case to.Kind() == reflect.String && from.Kind() != reflect.String:
		return ai.CoerceString(data), nil
	default:
		return data, nil
	}
}
