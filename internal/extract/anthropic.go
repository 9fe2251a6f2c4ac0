package extract

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/pkg/anthropic"
)

// extractionPrompts maps prompt versions to system prompts. Changing a
// prompt means adding a new version here, never editing an existing one:
// the version is part of the attempt parameter set.
var extractionPrompts = map[string]string{
	"v1": `You are transcribing herbarium specimen labels. Read every label,
annotation, and stamp in the image and return a single JSON object mapping
Darwin Core terms to what is written. Use the terms: catalogNumber,
scientificName, eventDate, recordedBy, recordNumber, locality,
stateProvince, country, habitat, decimalLatitude, decimalLongitude,
minimumElevationInMeters, identifiedBy, verbatimLabel.

Each value is either a string, or an object {"value": string, "confidence":
number between 0 and 1}. Transcribe exactly what is written; do not expand
abbreviations or correct spellings. Omit terms that are not on the label.
Return only the JSON object, no commentary.`,
}

// PromptFor returns the system prompt for a version. An unknown version is
// a configuration failure: retrying the attempt cannot fix it.
func PromptFor(version string) (string, error) {
	p, ok := extractionPrompts[version]
	if !ok {
		return "", resilience.NewConfigurationError(eris.Errorf("extract: unknown prompt version %q", version))
	}
	return p, nil
}

// VisionEngine extracts label fields by sending the specimen image to the
// Anthropic API.
type VisionEngine struct {
	client    anthropic.Client
	registry  *model.FieldRegistry
	maxTokens int64
}

// NewVisionEngine creates a VisionEngine.
func NewVisionEngine(client anthropic.Client, registry *model.FieldRegistry, maxTokens int64) *VisionEngine {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &VisionEngine{client: client, registry: registry, maxTokens: maxTokens}
}

// Name identifies the provider in attempts and precedence lists.
func (e *VisionEngine) Name() string { return "anthropic" }

// Extract reads the image from disk, sends it with the versioned prompt,
// and parses the JSON payload out of the response.
func (e *VisionEngine) Extract(ctx context.Context, img ImageRef, params ParamSet) (*Result, error) {
	prompt, err := PromptFor(params.PromptVersion)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read image %s", img.Path)
	}

	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     params.Model,
		MaxTokens: e.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompt),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Transcribe this specimen's labels.",
			Images:  []anthropic.Image{{MediaType: mediaType, Data: data}},
		}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(params.Model, "extract")

	raw := stripFences(resp.Text())
	if raw == "" {
		return nil, eris.Errorf("extract: empty response for %s", img.Identity)
	}

	res, err := ParsePayload([]byte(raw), e.registry)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("vision extraction parsed",
		zap.String("specimen", string(img.Identity)),
		zap.Int("fields", len(res.Fields)),
		zap.Int("unmapped", len(res.Unmapped)),
	)
	return res, nil
}

// stripFences removes a markdown code fence around a JSON payload, if the
// model added one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
