package copygen

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"listing-publisher/models"
)

//go:embed schema/social_posts.json
var socialPostsSchema []byte

var responseSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	const url = "social_posts.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(socialPostsSchema)); err != nil {
		panic(fmt.Sprintf("copygen: add schema: %v", err))
	}
	return compiler.MustCompile(url)
}

// ParseResponse extracts the caption pair from model output. Prose or
// markdown fences around the JSON object are tolerated.
func ParseResponse(text string) (models.CaptionPair, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return models.CaptionPair{}, fmt.Errorf("%w: no JSON object in response", models.ErrCopyGeneration)
	}
	raw := []byte(text[start : end+1])

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.CaptionPair{}, fmt.Errorf("%w: response is not valid JSON: %v", models.ErrCopyGeneration, err)
	}
	if err := responseSchema.Validate(v); err != nil {
		return models.CaptionPair{}, fmt.Errorf("%w: %v", models.ErrCopyGeneration, err)
	}

	var pair models.CaptionPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return models.CaptionPair{}, fmt.Errorf("%w: decode captions: %v", models.ErrCopyGeneration, err)
	}
	return pair, nil
}
