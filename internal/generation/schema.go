package generation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

var schemaCache sync.Map // reflect.Type -> string

// SchemaFor returns the JSON schema of T as compact JSON.
func SchemaFor[T any]() string {
	var v T
	typ := reflect.TypeOf(v)
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(string)
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	b, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		// Reflected schemas of plain structs always marshal.
		panic(fmt.Sprintf("generation: marshal schema for %v: %v", typ, err))
	}
	schemaCache.Store(typ, string(b))
	return string(b)
}

// ParseJSON parses a model reply into T. Markdown fences and leading or
// trailing prose around the JSON object are tolerated.
func ParseJSON[T any](reply string) (T, error) {
	var out T
	content := strings.TrimSpace(reply)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}
	if content == "" {
		return out, fmt.Errorf("%w: empty reply", ErrInvalidReply)
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	return out, nil
}
